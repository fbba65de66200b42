// Package export renders printable PDF brochures for rental listings.
package export

import "errors"

// Request contains parameters for a brochure export
type Request struct {
	PropertyID string
}

// Result contains the export output
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

var (
	// ErrContentUnavailable indicates listing data could not be loaded for export.
	ErrContentUnavailable = errors.New("brochure content unavailable")
	// ErrPDFDependencyMissing indicates PDF export runtime dependencies are unavailable.
	ErrPDFDependencyMissing = errors.New("brochure pdf dependency missing")
)
