package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"arkive/cmd"
	"arkive/config"
	"arkive/services"
	"arkive/types"

	"github.com/schollz/progressbar/v3"
)

func main() {
	var (
		server bool
		port   int
		folder string
		save   bool
		root   string
	)

	flag.BoolVar(&server, "server", false, "Start in web server mode")
	flag.IntVar(&port, "port", 8080, "Port for web server mode")
	flag.StringVar(&folder, "folder", "", "Folder to scan, relative to the archive root")
	flag.BoolVar(&save, "save", false, "Write manifest.json into the scanned folder")
	flag.StringVar(&root, "root", "", "Archive root (overrides ARKIVE_ROOT)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Error: %s", err)
	}
	if root != "" {
		cfg.ArchiveRoot = root
	}

	if !dirExists(cfg.ArchiveRoot) {
		log.Fatalf("You must provide a valid archive root folder (got %q)", cfg.ArchiveRoot)
	}

	// Server mode takes precedence
	if server {
		cmd.StartWebServer(cfg, port)
		return
	}

	if folder == "" {
		flag.Usage()
		return
	}

	if err := generateManifest(cfg, folder, save); err != nil {
		log.Fatalf("Error: %s", err)
	}
}

// generateManifest is the CLI entry point: it builds the manifest for one
// folder and prints it or persists it. Traversal is rejected but the
// whitelist is not consulted; the CLI operates on the local tree directly.
func generateManifest(cfg *config.Config, folder string, save bool) error {
	normalized, err := services.SanitizeFolder(folder)
	if err != nil {
		return err
	}

	absPath := filepath.Join(cfg.ArchiveRoot, filepath.FromSlash(normalized))

	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetDescription("scanning "+normalized),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
	)

	manifests := services.NewManifestService(services.NewFFProbeProber(), services.ManifestOptions{
		ProbeAudio:  cfg.ProbeAudio,
		ExtractTags: cfg.ExtractTags,
		OnEntry:     func(string) { bar.Add(1) },
	})

	manifest, err := manifests.Build(absPath, normalized)
	bar.Finish()
	if err != nil {
		return err
	}

	if save {
		written, err := manifests.Persist(manifest, absPath)
		if err != nil {
			return err
		}
		log.Printf("Manifest written to %s (%d items)", written, types.CountNodes(manifest.Children))
		return nil
	}

	data, err := services.EncodeManifest(manifest)
	if err != nil {
		return err
	}
	fmt.Print(string(data))
	return nil
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
