package services

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"arkive/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProber lets tests control probe availability and output.
type fakeProber struct {
	available bool
	meta      *types.AudioMetadata
	err       error
	calls     int
}

func (p *fakeProber) Available() bool { return p.available }

func (p *fakeProber) Probe(path string) (*types.AudioMetadata, error) {
	p.calls++
	return p.meta, p.err
}

func newTestService() ManifestService {
	return NewManifestService(nil, ManifestOptions{})
}

// writeFixture creates a file (and its parents) under root.
func writeFixture(t *testing.T, root, relPath string, content []byte) {
	t.Helper()
	fullPath := filepath.Join(root, filepath.FromSlash(relPath))
	require.NoError(t, os.MkdirAll(filepath.Dir(fullPath), 0755))
	require.NoError(t, os.WriteFile(fullPath, content, 0644))
}

func TestBuildScenario(t *testing.T) {
	root := t.TempDir()
	writeFixture(t, root, "pub_ab/a.mp3", []byte("ID3\x03\x00\x00\x00\x00\x00\x00"))
	writeFixture(t, root, "pub_ab/sub/b.txt", []byte("hello"))

	svc := newTestService()
	manifest, err := svc.Build(filepath.Join(root, "pub_ab"), "pub_ab")
	require.NoError(t, err)

	assert.Equal(t, types.ManifestVersion, manifest.Version)
	assert.Equal(t, "pub_ab", manifest.Folder)
	assert.False(t, manifest.GeneratedAt.IsZero())

	// Folders sort before files.
	require.Len(t, manifest.Children, 2)

	sub := manifest.Children[0]
	assert.Equal(t, "sub", sub.Name)
	assert.Equal(t, types.NodeTypeFolder, sub.Type)
	assert.Equal(t, "pub_ab/sub", sub.Path)
	require.Len(t, sub.Children, 1)
	assert.Equal(t, "b.txt", sub.Children[0].Name)
	assert.Equal(t, types.NodeTypeFile, sub.Children[0].Type)
	assert.Equal(t, "pub_ab/sub/b.txt", sub.Children[0].Path)
	assert.Equal(t, "text/plain", sub.Children[0].MimeType)
	assert.Equal(t, int64(5), sub.Children[0].Size)

	mp3 := manifest.Children[1]
	assert.Equal(t, "a.mp3", mp3.Name)
	assert.Equal(t, types.NodeTypeFile, mp3.Type)
	assert.Equal(t, "pub_ab/a.mp3", mp3.Path)
	assert.Equal(t, "audio/mpeg", mp3.MimeType)
	assert.Equal(t, int64(10), mp3.Size)
	assert.Nil(t, mp3.Audio)
}

func TestBuildOrdering(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "zeta"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "alpha"), 0755))
	writeFixture(t, root, "alpha.txt", []byte("x"))
	writeFixture(t, root, "Beta.txt", []byte("x"))

	svc := newTestService()
	manifest, err := svc.Build(root, "lib")
	require.NoError(t, err)

	names := make([]string, 0, len(manifest.Children))
	for _, child := range manifest.Children {
		names = append(names, child.Name)
	}

	// Folders first, each group in ascending byte order ("B" < "a").
	assert.Equal(t, []string{"alpha", "zeta", "Beta.txt", "alpha.txt"}, names)
}

func TestBuildSkipsExcludedNames(t *testing.T) {
	root := t.TempDir()
	writeFixture(t, root, "keep.txt", []byte("x"))
	writeFixture(t, root, ".env", []byte("SECRET=1"))
	writeFixture(t, root, "Thumbs.db", []byte("x"))
	writeFixture(t, root, "manifest.json", []byte("{}"))
	writeFixture(t, root, "config.json", []byte("{}"))
	writeFixture(t, root, ".git/HEAD", []byte("ref: refs/heads/main"))
	writeFixture(t, root, "sub/.DS_Store", []byte("x"))
	writeFixture(t, root, "sub/keep2.txt", []byte("x"))

	svc := newTestService()
	manifest, err := svc.Build(root, "lib")
	require.NoError(t, err)

	require.Len(t, manifest.Children, 2)
	assert.Equal(t, "sub", manifest.Children[0].Name)
	require.Len(t, manifest.Children[0].Children, 1)
	assert.Equal(t, "keep2.txt", manifest.Children[0].Children[0].Name)
	assert.Equal(t, "keep.txt", manifest.Children[1].Name)

	// Two files plus one folder, nothing excluded leaked in.
	assert.Equal(t, 3, types.CountNodes(manifest.Children))
}

func TestBuildPathInvariants(t *testing.T) {
	root := t.TempDir()
	writeFixture(t, root, "a/b/c.txt", []byte("x"))
	writeFixture(t, root, "a/d.pdf", []byte("x"))

	svc := newTestService()
	manifest, err := svc.Build(root, "docs")
	require.NoError(t, err)

	var check func(nodes []types.ManifestNode)
	check = func(nodes []types.ManifestNode) {
		for _, node := range nodes {
			assert.True(t, len(node.Path) > len("docs/"), "path %q must descend from folder", node.Path)
			assert.Equal(t, "docs/", node.Path[:5])
			assert.NotContains(t, node.Path, "..")
			check(node.Children)
		}
	}
	check(manifest.Children)
}

func TestBuildRootErrors(t *testing.T) {
	svc := newTestService()

	_, err := svc.Build(filepath.Join(t.TempDir(), "missing"), "missing")
	assert.Error(t, err)

	root := t.TempDir()
	writeFixture(t, root, "file.txt", []byte("x"))
	_, err = svc.Build(filepath.Join(root, "file.txt"), "file.txt")
	assert.Error(t, err)
}

func TestBuildAudioEnrichment(t *testing.T) {
	root := t.TempDir()
	writeFixture(t, root, "song.mp3", []byte("ID3\x03\x00\x00\x00\x00\x00\x00"))
	writeFixture(t, root, "notes.txt", []byte("x"))

	meta := &types.AudioMetadata{Duration: 12.5, Bitrate: 128000, SampleRate: 44100, Channels: 2, Codec: "mp3"}
	prober := &fakeProber{available: true, meta: meta}

	svc := NewManifestService(prober, ManifestOptions{ProbeAudio: true})
	manifest, err := svc.Build(root, "music")
	require.NoError(t, err)

	require.Len(t, manifest.Children, 2)
	assert.Equal(t, meta, manifest.Children[1].Audio, "song.mp3 carries probe metadata")
	assert.Nil(t, manifest.Children[0].Audio, "notes.txt is never probed")
	assert.Equal(t, 1, prober.calls, "only the audio file is probed")
}

func TestBuildAudioProbeUnavailable(t *testing.T) {
	root := t.TempDir()
	writeFixture(t, root, "song.mp3", []byte("ID3\x03\x00\x00\x00\x00\x00\x00"))

	prober := &fakeProber{available: false}
	svc := NewManifestService(prober, ManifestOptions{ProbeAudio: true})

	manifest, err := svc.Build(root, "music")
	require.NoError(t, err)

	require.Len(t, manifest.Children, 1)
	assert.Nil(t, manifest.Children[0].Audio)
	assert.Equal(t, 0, prober.calls, "unavailable prober is never invoked")

	// The serialized node must omit the field entirely, not emit null.
	data, err := json.Marshal(manifest.Children[0])
	require.NoError(t, err)
	assert.NotContains(t, string(data), `"audio":`)
}

func TestBuildAudioProbeFailure(t *testing.T) {
	root := t.TempDir()
	writeFixture(t, root, "song.mp3", []byte("ID3\x03\x00\x00\x00\x00\x00\x00"))

	prober := &fakeProber{available: true, err: assert.AnError}
	svc := NewManifestService(prober, ManifestOptions{ProbeAudio: true})

	manifest, err := svc.Build(root, "music")
	require.NoError(t, err)
	assert.Nil(t, manifest.Children[0].Audio, "probe failure degrades to no metadata")
}

func TestBuildOnEntryObserver(t *testing.T) {
	root := t.TempDir()
	writeFixture(t, root, "a.txt", []byte("x"))
	writeFixture(t, root, "sub/b.txt", []byte("x"))

	var visited []string
	svc := NewManifestService(nil, ManifestOptions{
		OnEntry: func(path string) { visited = append(visited, path) },
	})

	_, err := svc.Build(root, "lib")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"lib/a.txt", "lib/sub", "lib/sub/b.txt"}, visited)
}

func TestPersistAndRoundTrip(t *testing.T) {
	root := t.TempDir()
	writeFixture(t, root, "pub_ab/a.mp3", []byte("ID3\x03\x00\x00\x00\x00\x00\x00"))
	writeFixture(t, root, "pub_ab/sub/b.txt", []byte("hello"))
	dir := filepath.Join(root, "pub_ab")

	svc := newTestService()
	built, err := svc.Build(dir, "pub_ab")
	require.NoError(t, err)

	written, err := svc.Persist(built, dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, ManifestFileName), written)

	loaded, err := svc.LoadPersisted(dir)
	require.NoError(t, err)

	assert.Equal(t, built.Version, loaded.Version)
	assert.Equal(t, built.Folder, loaded.Folder)
	assert.Equal(t, built.Children, loaded.Children)

	// A fresh build over the unchanged tree matches too. The persisted
	// manifest.json itself is excluded from the walk.
	fresh, err := svc.Build(dir, "pub_ab")
	require.NoError(t, err)
	assert.Equal(t, built.Children, fresh.Children)
}

func TestPersistedManifestKeepsSlashes(t *testing.T) {
	root := t.TempDir()
	writeFixture(t, root, "sub/b.txt", []byte("x"))

	svc := newTestService()
	built, err := svc.Build(root, "assets/documents")
	require.NoError(t, err)

	data, err := EncodeManifest(built)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"assets/documents/sub"`)
	assert.NotContains(t, string(data), `\/`)
}

func TestPersistTargetNotADirectory(t *testing.T) {
	root := t.TempDir()
	writeFixture(t, root, "file.txt", []byte("x"))

	svc := newTestService()
	built, err := svc.Build(root, "lib")
	require.NoError(t, err)

	_, err = svc.Persist(built, filepath.Join(root, "file.txt"))
	assert.Error(t, err)
}

func TestLoadPersistedErrors(t *testing.T) {
	svc := newTestService()

	_, err := svc.LoadPersisted(t.TempDir())
	assert.True(t, os.IsNotExist(err), "missing manifest surfaces as not-exist")

	root := t.TempDir()
	writeFixture(t, root, ManifestFileName, []byte("{not json"))
	_, err = svc.LoadPersisted(root)
	require.Error(t, err)
	assert.False(t, os.IsNotExist(err), "malformed manifest is not a not-exist error")
}

func TestBuildDepthGuardTruncates(t *testing.T) {
	root := t.TempDir()

	// Nest deeper than the walk limit and leave a file at the bottom.
	deep := root
	for i := 0; i < 40; i++ {
		deep = filepath.Join(deep, "d")
	}
	require.NoError(t, os.MkdirAll(deep, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(deep, "leaf.txt"), []byte("x"), 0644))

	svc := newTestService()
	manifest, err := svc.Build(root, "lib")
	require.NoError(t, err)

	// Descend the single-folder chain: it ends with an empty subtree at
	// the limit instead of reaching the leaf or failing the build.
	depth := 0
	children := manifest.Children
	for len(children) > 0 {
		require.Len(t, children, 1)
		require.Equal(t, types.NodeTypeFolder, children[0].Type)
		children = children[0].Children
		depth++
	}
	assert.Equal(t, maxWalkDepth+1, depth)
}

func TestBuildUnreadableDirAbsorbed(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("directory permissions are not enforced for root")
	}

	root := t.TempDir()
	writeFixture(t, root, "locked/secret.txt", []byte("x"))
	writeFixture(t, root, "open/b.txt", []byte("x"))

	locked := filepath.Join(root, "locked")
	require.NoError(t, os.Chmod(locked, 0000))
	t.Cleanup(func() { os.Chmod(locked, 0755) })

	svc := newTestService()
	manifest, err := svc.Build(root, "lib")
	require.NoError(t, err, "one unreadable subtree must not fail the build")

	require.Len(t, manifest.Children, 2)
	assert.Equal(t, "locked", manifest.Children[0].Name)
	assert.Empty(t, manifest.Children[0].Children, "unreadable directory degrades to empty")
	assert.Equal(t, "open", manifest.Children[1].Name)
	require.Len(t, manifest.Children[1].Children, 1)
	assert.Equal(t, "b.txt", manifest.Children[1].Children[0].Name)
}

func TestPersistFilePermissions(t *testing.T) {
	root := t.TempDir()
	writeFixture(t, root, "a.txt", []byte("x"))

	svc := newTestService()
	built, err := svc.Build(root, "lib")
	require.NoError(t, err)

	written, err := svc.Persist(built, root)
	require.NoError(t, err)

	// The temp file starts out 0600; the persisted manifest must be
	// world-readable.
	info, err := os.Stat(written)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0644), info.Mode().Perm())
}

func TestBuildFileCountMatchesDisk(t *testing.T) {
	root := t.TempDir()
	files := []string{"a.txt", "b.pdf", "x/c.png", "x/y/d.zip", "x/y/e.md"}
	for _, f := range files {
		writeFixture(t, root, f, []byte("x"))
	}

	svc := newTestService()
	manifest, err := svc.Build(root, "lib")
	require.NoError(t, err)

	var fileCount func(nodes []types.ManifestNode) int
	fileCount = func(nodes []types.ManifestNode) int {
		n := 0
		for _, node := range nodes {
			if node.Type == types.NodeTypeFile {
				n++
			}
			n += fileCount(node.Children)
		}
		return n
	}
	assert.Equal(t, len(files), fileCount(manifest.Children))
}
