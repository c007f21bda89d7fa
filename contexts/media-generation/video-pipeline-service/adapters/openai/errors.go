package openaiadapter

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/openai/openai-go"

	domainerrors "turntable/contexts/media-generation/video-pipeline-service/domain/errors"
)

// classifyError tags provider errors so the retry policy can tell rate
// limits and outages from rejected requests.
func classifyError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if isTransientStatus(apiErr.StatusCode) {
			return fmt.Errorf("%w: %s: status %d: %w", domainerrors.ErrTransient, op, apiErr.StatusCode, err)
		}
		return fmt.Errorf("%w: %s: status %d: %w", domainerrors.ErrCollaboratorFailed, op, apiErr.StatusCode, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: %w", domainerrors.ErrTransient, op, err)
	}
	return fmt.Errorf("%w: %s: %w", domainerrors.ErrCollaboratorFailed, op, err)
}

func isTransientStatus(status int) bool {
	return status == http.StatusTooManyRequests || status == http.StatusRequestTimeout || status >= 500
}
