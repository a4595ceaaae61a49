package main

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"arkive/cmd"
	"arkive/config"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

const testAPIKey = "test-key"

// TestHelper provides utilities for testing the Arkive server
type TestHelper struct {
	Server      *httptest.Server
	ArchiveRoot string
	Config      *config.Config
}

// NewTestHelper creates a helper with a temporary archive and a running
// test server. Audio probing and tag extraction are off so tests never
// depend on external tools.
func NewTestHelper(t *testing.T) *TestHelper {
	return NewTestHelperWithConfig(t, nil)
}

// NewTestHelperWithConfig lets a test tweak the configuration before the
// router is built.
func NewTestHelperWithConfig(t *testing.T, mutate func(*config.Config)) *TestHelper {
	root := t.TempDir()

	cfg := &config.Config{
		APIKey:         testAPIKey,
		ArchiveRoot:    root,
		AllowedFolders: []string{"pub_ab", "assets/documents"},
		RateLimit:      100,
		RateWindow:     time.Minute,
		ProbeAudio:     false,
		ExtractTags:    false,
		Environment:    "test",
	}
	if mutate != nil {
		mutate(cfg)
	}

	gin.SetMode(gin.TestMode)
	server := httptest.NewServer(cmd.NewRouter(cfg))
	t.Cleanup(server.Close)

	helper := &TestHelper{
		Server:      server,
		ArchiveRoot: root,
		Config:      cfg,
	}
	helper.setupTestData(t)

	return helper
}

// setupTestData creates the archive fixture: an audio file, a nested text
// file and a second whitelisted folder.
func (h *TestHelper) setupTestData(t *testing.T) {
	h.CreateTestFile(t, "pub_ab/a.mp3", []byte("ID3\x03\x00\x00\x00\x00\x00\x00"))
	h.CreateTestFile(t, "pub_ab/sub/b.txt", []byte("hello"))
	h.CreateTestFile(t, "assets/documents/readme.pdf", []byte("%PDF-1.4"))
}

// CreateTestFile creates a file with the given content under the archive root.
func (h *TestHelper) CreateTestFile(t *testing.T, relativePath string, content []byte) {
	fullPath := filepath.Join(h.ArchiveRoot, filepath.FromSlash(relativePath))
	require.NoError(t, os.MkdirAll(filepath.Dir(fullPath), 0755))
	require.NoError(t, os.WriteFile(fullPath, content, 0644))
}

// ManifestURL builds a /manifest request path with a properly escaped
// folder parameter.
func ManifestURL(route, folder string) string {
	params := url.Values{}
	params.Set("folder", folder)
	return route + "?" + params.Encode()
}

// MakeRequest performs a GET against the test server. An empty key sends
// no authentication at all.
func (h *TestHelper) MakeRequest(t *testing.T, path, key string) *http.Response {
	req, err := http.NewRequest(http.MethodGet, h.Server.URL+path, nil)
	require.NoError(t, err)
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

// GetJSON performs an authenticated GET and unmarshals the JSON response.
func (h *TestHelper) GetJSON(t *testing.T, path string, target interface{}) *http.Response {
	return h.getJSONWithKey(t, path, testAPIKey, target)
}

// GetJSONNoAuth performs an unauthenticated GET and unmarshals the response.
func (h *TestHelper) GetJSONNoAuth(t *testing.T, path string, target interface{}) *http.Response {
	return h.getJSONWithKey(t, path, "", target)
}

func (h *TestHelper) getJSONWithKey(t *testing.T, path, key string, target interface{}) *http.Response {
	resp := h.MakeRequest(t, path, key)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	defer resp.Body.Close()

	if target != nil {
		require.NoError(t, json.Unmarshal(body, target), "body: %s", body)
	}
	return resp
}
