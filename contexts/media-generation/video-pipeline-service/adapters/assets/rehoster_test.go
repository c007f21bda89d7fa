package assetsadapter

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "turntable/contexts/media-generation/video-pipeline-service/domain/errors"
)

func TestRehostStoresFileUnderPublicURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = io.WriteString(w, "png-bytes")
	}))
	defer server.Close()

	dir := t.TempDir()
	rehoster, err := NewRehoster(Config{Dir: dir, PublicBaseURL: "https://videos.example.com/"}, nil)
	require.NoError(t, err)

	public, err := rehoster.Rehost(context.Background(), server.URL+"/edited")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(public, "https://videos.example.com/assets/"))
	assert.True(t, strings.HasSuffix(public, ".png"))

	stored, err := os.ReadFile(filepath.Join(dir, strings.TrimPrefix(public, "https://videos.example.com/assets/")))
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(stored))
}

func TestRehostClassifiesUpstreamStatus(t *testing.T) {
	code := http.StatusBadGateway
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(code)
	}))
	defer server.Close()

	rehoster, err := NewRehoster(Config{Dir: t.TempDir()}, nil)
	require.NoError(t, err)

	_, err = rehoster.Rehost(context.Background(), server.URL)
	assert.ErrorIs(t, err, domainerrors.ErrTransient)

	code = http.StatusNotFound
	_, err = rehoster.Rehost(context.Background(), server.URL)
	assert.ErrorIs(t, err, domainerrors.ErrCollaboratorFailed)
}

func TestExtensionFor(t *testing.T) {
	assert.Equal(t, ".jpg", extensionFor("https://x/y", "image/jpeg"))
	assert.Equal(t, ".webp", extensionFor("https://x/y.WEBP?sig=1", ""))
	assert.Equal(t, ".png", extensionFor("https://x/y", "application/octet-stream"))
}
