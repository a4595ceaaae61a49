package handlers

import (
	"net/http"

	"arkive/config"
	"arkive/types"

	"github.com/gin-gonic/gin"
)

// FolderHandler exposes the folder whitelist to authenticated clients.
type FolderHandler struct {
	cfg *config.Config
}

// NewFolderHandler creates a new folder handler
func NewFolderHandler(cfg *config.Config) *FolderHandler {
	return &FolderHandler{cfg: cfg}
}

// ListFolders returns the folders a valid key may request.
func (h *FolderHandler) ListFolders(c *gin.Context) {
	folders := h.cfg.AllowedFolders
	if folders == nil {
		folders = []string{}
	}

	c.JSON(http.StatusOK, types.FoldersResponse{
		Folders: folders,
		Count:   len(folders),
	})
}
