package handlers

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os"
	"path/filepath"

	"arkive/config"
	"arkive/middleware"
	"arkive/services"
	"arkive/types"

	"github.com/gin-gonic/gin"
)

// manifestCacheControl is the cache hint attached to successful manifest
// responses; directory contents change rarely relative to request volume.
const manifestCacheControl = "public, max-age=300"

// ManifestHandler serves folder manifests: persisted when available,
// freshly built otherwise.
type ManifestHandler struct {
	cfg       *config.Config
	manifests services.ManifestService
}

// NewManifestHandler creates a new manifest handler
func NewManifestHandler(cfg *config.Config, manifests services.ManifestService) *ManifestHandler {
	return &ManifestHandler{cfg: cfg, manifests: manifests}
}

// resolveFolder validates the folder query parameter and maps it onto the
// archive root. On failure it writes the error response and returns ok=false.
func (h *ManifestHandler) resolveFolder(c *gin.Context) (folder, absPath string, ok bool) {
	folder, err := services.ValidateFolder(c.Query("folder"), h.cfg.AllowedFolders)
	switch {
	case errors.Is(err, services.ErrEmptyFolder):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "bad_request",
			"message": "query parameter 'folder' is required",
		})
		return "", "", false
	case errors.Is(err, services.ErrTraversal):
		c.JSON(http.StatusForbidden, gin.H{
			"error":   "forbidden",
			"message": "path traversal not allowed",
		})
		return "", "", false
	case errors.Is(err, services.ErrNotAllowed):
		c.JSON(http.StatusForbidden, gin.H{
			"error":   "forbidden",
			"message": "folder is not in the allowed list",
		})
		return "", "", false
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "server_error",
			"message": "failed to validate folder",
		})
		return "", "", false
	}

	absPath = filepath.Join(h.cfg.ArchiveRoot, filepath.FromSlash(folder))

	info, err := os.Stat(absPath)
	if err != nil || !info.IsDir() {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": fmt.Sprintf("folder not found: %s", folder),
		})
		return "", "", false
	}

	return folder, absPath, true
}

// GetManifest serves a folder manifest, preferring a persisted
// manifest.json and falling back to a live build.
func (h *ManifestHandler) GetManifest(c *gin.Context) {
	folder, absPath, ok := h.resolveFolder(c)
	if !ok {
		return
	}

	manifest, err := h.manifests.LoadPersisted(absPath)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		// The file exists but could not be read or parsed.
		log.Printf("Error loading persisted manifest for %s (request %s): %v", folder, middleware.GetRequestID(c), err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "server_error",
			"message": "persisted manifest is unreadable",
		})
		return
	}

	if manifest == nil {
		manifest, err = h.manifests.Build(absPath, folder)
		if err != nil {
			log.Printf("Error building manifest for %s (request %s): %v", folder, middleware.GetRequestID(c), err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "server_error",
				"message": "failed to build manifest",
			})
			return
		}
	}

	c.Header("Cache-Control", manifestCacheControl)
	c.JSON(http.StatusOK, manifest)
}

// GenerateManifest always builds a fresh manifest and, with save=1,
// persists it into the scanned folder.
func (h *ManifestHandler) GenerateManifest(c *gin.Context) {
	folder, absPath, ok := h.resolveFolder(c)
	if !ok {
		return
	}

	manifest, err := h.manifests.Build(absPath, folder)
	if err != nil {
		log.Printf("Error building manifest for %s (request %s): %v", folder, middleware.GetRequestID(c), err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "server_error",
			"message": "failed to build manifest",
		})
		return
	}

	if c.DefaultQuery("save", "0") != "1" {
		c.JSON(http.StatusOK, manifest)
		return
	}

	written, err := h.manifests.Persist(manifest, absPath)
	if err != nil {
		log.Printf("Error persisting manifest for %s (request %s): %v", folder, middleware.GetRequestID(c), err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "server_error",
			"message": "failed to write manifest file",
		})
		return
	}

	var size int64
	if info, err := os.Stat(written); err == nil {
		size = info.Size()
	}

	c.JSON(http.StatusOK, types.GenerateResult{
		Status:    "ok",
		Message:   fmt.Sprintf("manifest written for %s", folder),
		Path:      folder + "/" + services.ManifestFileName,
		Size:      size,
		ItemCount: types.CountNodes(manifest.Children),
	})
}
