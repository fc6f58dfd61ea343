package errors

import "fmt"

// ErrMissingDownloadRoot is returned when no download root is configured.
// It is shared by every caller and must not be modified; wrap it to add context.
var ErrMissingDownloadRoot = New(ConfigurationError, "download root is not set; provide --download-root or KETOHUB_DOWNLOAD_ROOT")

// NoImageFoundError reports that no strategy step located a main image on a page.
type NoImageFoundError struct {
	PageURL string
}

func (e *NoImageFoundError) Error() string {
	return fmt.Sprintf("could not find image in source HTML: %s", e.PageURL)
}

// ImageDownloadError reports a non-success HTTP status for an image request.
type ImageDownloadError struct {
	URL        string
	StatusCode int
}

func (e *ImageDownloadError) Error() string {
	return fmt.Sprintf("image download failed for %s: status %d", e.URL, e.StatusCode)
}

// UnexpectedImageTypeError reports an image response that was not declared as image/jpeg.
type UnexpectedImageTypeError struct {
	URL          string
	DeclaredType string
}

func (e *UnexpectedImageTypeError) Error() string {
	return fmt.Sprintf("expected image/jpeg from %s, got %q", e.URL, e.DeclaredType)
}
