// Package assetsadapter copies collaborator-hosted files into a local asset
// directory served by the API under /assets/.
package assetsadapter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	domainerrors "turntable/contexts/media-generation/video-pipeline-service/domain/errors"
)

const (
	RoutePrefix      = "/assets/"
	maxAssetBytes    = 25 << 20
	defaultExtension = ".png"
)

type Config struct {
	Dir           string
	PublicBaseURL string
	Timeout       time.Duration
	HTTPClient    *http.Client
}

type Rehoster struct {
	dir     string
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

func NewRehoster(cfg Config, logger *slog.Logger) (*Rehoster, error) {
	if strings.TrimSpace(cfg.Dir) == "" {
		return nil, errors.New("asset directory is required")
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create asset directory: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &Rehoster{
		dir:     cfg.Dir,
		baseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
		client:  client,
		logger:  logger,
	}, nil
}

func (r *Rehoster) Dir() string {
	return r.dir
}

func (r *Rehoster) Rehost(ctx context.Context, ref string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return "", fmt.Errorf("%w: invalid asset url: %w", domainerrors.ErrCollaboratorFailed, err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: download asset: %w", domainerrors.ErrTransient, err)
		}
		return "", fmt.Errorf("%w: download asset: %w", domainerrors.ErrCollaboratorFailed, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return "", fmt.Errorf("%w: download asset: status %d", domainerrors.ErrTransient, resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: download asset: status %d", domainerrors.ErrCollaboratorFailed, resp.StatusCode)
	}

	name := uuid.NewString() + extensionFor(ref, resp.Header.Get("Content-Type"))
	target := filepath.Join(r.dir, name)
	file, err := os.CreateTemp(r.dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create asset file: %w", err)
	}
	tmpName := file.Name()
	written, copyErr := io.Copy(file, io.LimitReader(resp.Body, maxAssetBytes+1))
	closeErr := file.Close()
	if copyErr == nil && written > maxAssetBytes {
		copyErr = fmt.Errorf("%w: asset exceeds %d bytes", domainerrors.ErrCollaboratorFailed, maxAssetBytes)
	}
	if copyErr == nil {
		copyErr = closeErr
	}
	if copyErr != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("store asset: %w", copyErr)
	}
	if err := os.Rename(tmpName, target); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("store asset: %w", err)
	}

	public := r.baseURL + RoutePrefix + name
	r.logger.Info("asset rehosted",
		"event", "asset_rehosted",
		"module", "media-generation/video-pipeline-service",
		"layer", "adapter",
		"asset", name,
		"bytes", written,
	)
	return public, nil
}

func extensionFor(ref string, contentType string) string {
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		switch mediaType {
		case "image/png":
			return ".png"
		case "image/jpeg":
			return ".jpg"
		case "image/webp":
			return ".webp"
		case "video/mp4":
			return ".mp4"
		}
	}
	if idx := strings.IndexAny(ref, "?#"); idx >= 0 {
		ref = ref[:idx]
	}
	switch ext := strings.ToLower(path.Ext(ref)); ext {
	case ".png", ".jpg", ".jpeg", ".webp", ".mp4":
		return ext
	}
	return defaultExtension
}
