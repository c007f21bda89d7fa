package openaiadapter

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	domainerrors "turntable/contexts/media-generation/video-pipeline-service/domain/errors"
)

const (
	DefaultImageEditModel = "dall-e-2"
	// MaxEditPromptLength is the provider's prompt limit for image edits.
	MaxEditPromptLength = 1000
	editCanvasSide      = 1024
	maxSourceBytes      = 20 << 20
	maxEditUploadBytes  = 4 << 20
)

type ImageEditorConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// ImageEditor downloads the source image, pads it onto a square 1024px
// canvas and sends it to the image edit endpoint.
type ImageEditor struct {
	client   openai.Client
	download *http.Client
	model    string
	logger   *slog.Logger
}

func NewImageEditor(cfg ImageEditorConfig, logger *slog.Logger) *ImageEditor {
	if logger == nil {
		logger = slog.Default()
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultImageEditModel
	}
	download := cfg.HTTPClient
	if download == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		download = &http.Client{Timeout: timeout}
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
		option.WithHTTPClient(download),
	}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		opts = append(opts, option.WithBaseURL(ensureTrailingSlash(cfg.BaseURL)))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	return &ImageEditor{
		client:   openai.NewClient(opts...),
		download: download,
		model:    model,
		logger:   logger,
	}
}

func (e *ImageEditor) EditImage(ctx context.Context, imageRef string, prompt string) (string, error) {
	source, err := e.fetch(ctx, imageRef)
	if err != nil {
		return "", err
	}
	canvas, err := PrepareEditCanvas(source)
	if err != nil {
		return "", err
	}

	resp, err := e.client.Images.Edit(ctx, openai.ImageEditParams{
		Image: openai.ImageEditParamsImageUnion{
			OfFile: openai.File(bytes.NewReader(canvas), "image.png", "image/png"),
		},
		Prompt:         TruncatePrompt(prompt),
		Model:          openai.ImageModel(e.model),
		N:              openai.Int(1),
		Size:           openai.ImageEditParamsSize1024x1024,
		ResponseFormat: openai.ImageEditParamsResponseFormatURL,
	})
	if err != nil {
		return "", classifyError("edit image", err)
	}
	if len(resp.Data) == 0 || strings.TrimSpace(resp.Data[0].URL) == "" {
		return "", fmt.Errorf("%w: image edit returned no url", domainerrors.ErrMalformedResponse)
	}

	e.logger.Debug("image edit received",
		"event", "openai_image_edit_completed",
		"module", "media-generation/video-pipeline-service",
		"layer", "adapter",
		"model_id", e.model,
		"upload_bytes", len(canvas),
	)
	return strings.TrimSpace(resp.Data[0].URL), nil
}

func (e *ImageEditor) fetch(ctx context.Context, imageRef string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageRef, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: source image request: %w", domainerrors.ErrCollaboratorFailed, err)
	}
	resp, err := e.download.Do(req)
	if err != nil {
		return nil, classifyError("download source image", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if isTransientStatus(resp.StatusCode) {
			return nil, fmt.Errorf("%w: download source image: status %d", domainerrors.ErrTransient, resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: download source image: status %d", domainerrors.ErrCollaboratorFailed, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSourceBytes+1))
	if err != nil {
		return nil, classifyError("read source image", err)
	}
	if len(body) > maxSourceBytes {
		return nil, fmt.Errorf("%w: source image exceeds %d bytes", domainerrors.ErrUnsupportedSourceFormat, maxSourceBytes)
	}
	return body, nil
}

// PrepareEditCanvas centers the image on a transparent square and scales it
// to 1024x1024 PNG, the shape the edit endpoint accepts.
func PrepareEditCanvas(raw []byte) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: decode source image: %w", domainerrors.ErrUnsupportedSourceFormat, err)
	}

	bounds := src.Bounds()
	side := bounds.Dx()
	if bounds.Dy() > side {
		side = bounds.Dy()
	}
	square := image.NewRGBA(image.Rect(0, 0, side, side))
	draw.Draw(square, square.Bounds(), image.NewUniform(color.Transparent), image.Point{}, draw.Src)
	offset := image.Pt((side-bounds.Dx())/2, (side-bounds.Dy())/2)
	draw.Draw(square, bounds.Sub(bounds.Min).Add(offset), src, bounds.Min, draw.Over)

	canvas := image.NewRGBA(image.Rect(0, 0, editCanvasSide, editCanvasSide))
	draw.CatmullRom.Scale(canvas, canvas.Bounds(), square, square.Bounds(), draw.Over, nil)

	var buf bytes.Buffer
	encoder := png.Encoder{CompressionLevel: png.BestCompression}
	if err := encoder.Encode(&buf, canvas); err != nil {
		return nil, fmt.Errorf("%w: encode edit canvas: %w", domainerrors.ErrCollaboratorFailed, err)
	}
	if buf.Len() > maxEditUploadBytes {
		return nil, fmt.Errorf("%w: edit canvas is %d bytes", domainerrors.ErrUnsupportedSourceFormat, buf.Len())
	}
	return buf.Bytes(), nil
}

func TruncatePrompt(prompt string) string {
	prompt = strings.TrimSpace(prompt)
	if utf8.RuneCountInString(prompt) <= MaxEditPromptLength {
		return prompt
	}
	return string([]rune(prompt)[:MaxEditPromptLength])
}
