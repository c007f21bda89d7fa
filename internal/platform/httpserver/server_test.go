package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	videopipelineservice "turntable/contexts/media-generation/video-pipeline-service"
	"turntable/contexts/media-generation/video-pipeline-service/ports"
	pipelinehttp "turntable/contexts/media-generation/video-pipeline-service/transport/http"
)

type stubPrompts struct{}

func (stubPrompts) GeneratePrompt(context.Context, string, string) (ports.GeneratedPrompt, error) {
	return ports.GeneratedPrompt{Text: "turntable", ModelID: "m"}, nil
}

func newTestServer(t *testing.T, assetDir string) (*Server, videopipelineservice.Module) {
	t.Helper()
	module := videopipelineservice.NewInMemoryModule(videopipelineservice.Collaborators{Prompts: stubPrompts{}}, nil, nil)
	return New(module, nil, ":0", assetDir), module
}

func TestStartPipelineAcceptsAndCapturesClientIP(t *testing.T) {
	server, module := newTestServer(t, "")
	body := `{"title":"Lamp","description":"Brass","email":"maker@example.com","image_url":"https://cdn.example.com/lamp.png"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/pipeline-runs", strings.NewReader(body))
	req.Header.Set("X-Forwarded-For", "198.51.100.4, 10.0.0.1")
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	var resp pipelinehttp.StartPipelineResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "pending", resp.Status)

	run, err := module.Store.GetRun(context.Background(), resp.RunID)
	require.NoError(t, err)
	assert.Equal(t, "198.51.100.4", run.Input.ClientIP)
	assert.Equal(t, 1, module.Broker.Pending())
}

func TestStartPipelineMapsValidationToBadRequest(t *testing.T) {
	server, _ := newTestServer(t, "")
	for _, body := range []string{`{"title":"Lamp"}`, `not json`} {
		rec := httptest.NewRecorder()
		server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/pipeline-runs", strings.NewReader(body)))
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
}

func TestGetPipelineRunNotFound(t *testing.T) {
	server, _ := newTestServer(t, "")
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/pipeline-runs/missing", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	var resp pipelinehttp.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "run_not_found", resp.Code)
}

func TestListPromptsValidatesQuery(t *testing.T) {
	server, _ := newTestServer(t, "")

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/prompts?email=maker@example.com&limit=x", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/prompts?email=nope", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/prompts?email=maker@example.com", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"items":[]}`, rec.Body.String())
}

func TestHealthAndAssets(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "clip.mp4"), []byte("video"), 0o600))
	server, _ := newTestServer(t, dir)

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/assets/clip.mp4", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "video", rec.Body.String())
}

func TestResolveClientIPFallsBackToRemoteAddr(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.7:5123"
	assert.Equal(t, "192.0.2.7", resolveClientIP(req))
}
