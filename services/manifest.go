package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"time"

	"arkive/types"
)

// ManifestFileName is the persisted manifest written inside scanned folders.
const ManifestFileName = "manifest.json"

// maxWalkDepth bounds recursion so a symlink loop degrades to an empty
// subtree instead of unbounded descent.
const maxWalkDepth = 32

// skipNames are entries that never appear in a manifest: VCS metadata,
// OS litter, environment files, previously persisted manifests and the
// server's own configuration file.
var skipNames = map[string]struct{}{
	".":              {},
	"..":             {},
	".git":           {},
	".gitignore":     {},
	".svn":           {},
	".hg":            {},
	".DS_Store":      {},
	"Thumbs.db":      {},
	".env":           {},
	"node_modules":   {},
	ManifestFileName: {},
	"config.json":    {},
}

// ManifestService builds, persists and reloads folder manifests.
type ManifestService interface {
	Build(rootPath, folder string) (*types.Manifest, error)
	Persist(manifest *types.Manifest, targetDir string) (string, error)
	LoadPersisted(dir string) (*types.Manifest, error)
}

// ManifestOptions controls optional enrichment and progress reporting.
type ManifestOptions struct {
	// ProbeAudio enables external probe metadata for audio files.
	ProbeAudio bool
	// ExtractTags enables embedded tag extraction for audio files.
	ExtractTags bool
	// OnEntry, when set, is called once per emitted node with its
	// web-relative path.
	OnEntry func(path string)
}

type manifestService struct {
	prober AudioProber
	opts   ManifestOptions
}

// NewManifestService creates a manifest service. The prober may be nil
// when audio probing is disabled.
func NewManifestService(prober AudioProber, opts ManifestOptions) ManifestService {
	return &manifestService{prober: prober, opts: opts}
}

// Build walks rootPath and returns its manifest. The caller is responsible
// for having validated that rootPath is contained in a permitted base
// directory; Build only re-checks that it exists and is a directory.
func (s *manifestService) Build(rootPath, folder string) (*types.Manifest, error) {
	info, err := os.Stat(rootPath)
	if err != nil {
		return nil, fmt.Errorf("cannot access folder: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", folder)
	}

	return &types.Manifest{
		Version:     types.ManifestVersion,
		GeneratedAt: time.Now().UTC(),
		Folder:      folder,
		Children:    s.walkDir(rootPath, folder, 0),
	}, nil
}

// walkDir lists one directory level and recurses into subdirectories.
// Read failures are absorbed into an empty children list so a single
// unreadable subtree never fails the whole manifest.
func (s *manifestService) walkDir(absPath, relPath string, depth int) []types.ManifestNode {
	if depth > maxWalkDepth {
		log.Printf("Warning: max depth exceeded at %s, truncating", relPath)
		return []types.ManifestNode{}
	}

	entries, err := os.ReadDir(absPath)
	if err != nil {
		log.Printf("Warning: cannot read directory %s: %v", relPath, err)
		return []types.ManifestNode{}
	}

	var folders, files []types.ManifestNode
	for _, entry := range entries {
		name := entry.Name()
		if _, skip := skipNames[name]; skip {
			continue
		}

		childAbs := filepath.Join(absPath, name)
		childRel := relPath + "/" + name

		// Stat follows symlinks, so links are classified by their target;
		// dangling links fail here and are skipped.
		info, err := os.Stat(childAbs)
		if err != nil {
			continue
		}

		if info.IsDir() {
			folders = append(folders, types.ManifestNode{
				Name:     name,
				Type:     types.NodeTypeFolder,
				Path:     childRel,
				Children: s.walkDir(childAbs, childRel, depth+1),
			})
		} else if info.Mode().IsRegular() {
			files = append(files, s.fileNode(name, childRel, childAbs, info.Size()))
		} else {
			// Sockets, devices and other specials never appear in a manifest.
			continue
		}

		if s.opts.OnEntry != nil {
			s.opts.OnEntry(childRel)
		}
	}

	// Folders first, then files, each in ascending byte order. This is the
	// wire contract shared with the CLI generator.
	sort.Slice(folders, func(i, j int) bool { return folders[i].Name < folders[j].Name })
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })

	children := make([]types.ManifestNode, 0, len(folders)+len(files))
	children = append(children, folders...)
	children = append(children, files...)
	return children
}

func (s *manifestService) fileNode(name, relPath, absPath string, size int64) types.ManifestNode {
	node := types.ManifestNode{
		Name:     name,
		Type:     types.NodeTypeFile,
		Path:     relPath,
		Size:     size,
		MimeType: MimeTypeFor(name),
	}

	if IsAudioMimeType(node.MimeType) {
		if s.opts.ProbeAudio && s.prober != nil && s.prober.Available() {
			if meta, err := s.prober.Probe(absPath); err == nil && meta != nil {
				node.Audio = meta
			}
		}
		if s.opts.ExtractTags {
			node.Tags = ReadTags(absPath)
		}
	}

	return node
}

// Persist writes the manifest as pretty-printed JSON (slashes unescaped)
// into targetDir via a temp file and rename, so a failed write never
// leaves a truncated manifest behind.
func (s *manifestService) Persist(manifest *types.Manifest, targetDir string) (string, error) {
	data, err := EncodeManifest(manifest)
	if err != nil {
		return "", fmt.Errorf("failed to encode manifest: %w", err)
	}

	tmp, err := os.CreateTemp(targetDir, ".manifest-*.json")
	if err != nil {
		return "", fmt.Errorf("failed to write manifest: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to write manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to write manifest: %w", err)
	}

	// CreateTemp uses 0600; the manifest must stay readable by a server
	// process running as a different user than the CLI that wrote it.
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to write manifest: %w", err)
	}

	target := filepath.Join(targetDir, ManifestFileName)
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to write manifest: %w", err)
	}

	return target, nil
}

// LoadPersisted reads and parses a previously persisted manifest. Callers
// can distinguish "no manifest" (fs.ErrNotExist) from a malformed file.
func (s *manifestService) LoadPersisted(dir string) (*types.Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFileName))
	if err != nil {
		return nil, err
	}

	var manifest types.Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("malformed manifest file: %w", err)
	}
	return &manifest, nil
}

// EncodeManifest serializes a manifest with two-space indentation and
// HTML escaping off, keeping paths readable in the persisted file.
func EncodeManifest(manifest *types.Manifest) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(manifest); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
