package services

import (
	"net/url"
	"path"
	"strings"
)

var videoSourceExtensions = map[string]struct{}{
	".png":  {},
	".jpg":  {},
	".jpeg": {},
	".webp": {},
}

// AcceptsAsVideoSource reports whether an unedited source image can be handed
// straight to the video generator. The decision is made on the URL path
// extension; query strings and fragments are ignored.
func AcceptsAsVideoSource(imageRef string) bool {
	raw := strings.TrimSpace(imageRef)
	if raw == "" {
		return false
	}
	if parsed, err := url.Parse(raw); err == nil && parsed.Path != "" {
		raw = parsed.Path
	}
	_, ok := videoSourceExtensions[strings.ToLower(path.Ext(raw))]
	return ok
}
