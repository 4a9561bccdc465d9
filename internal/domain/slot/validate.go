package slot

import (
	"errors"
	"strings"
)

var (
	ErrSlotNotFound    = errors.New("no slot is declared for this section and item")
	ErrInvalidFileType = errors.New("file must be an image")
	ErrFileTooLarge    = errors.New("file exceeds the maximum size for this slot")
)

// ValidateFile enforces the registry rules for a candidate file before any
// network call: the MIME type must be under image/ and the byte size must not
// exceed the slot's configured maximum.
func ValidateFile(d Descriptor, mimeType string, sizeBytes int64) error {
	if !strings.HasPrefix(mimeType, "image/") {
		return ErrInvalidFileType
	}
	if max := d.MaxBytes(); max > 0 && sizeBytes > max {
		return ErrFileTooLarge
	}
	return nil
}
