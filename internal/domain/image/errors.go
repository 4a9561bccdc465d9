package image

import "errors"

var (
	ErrRecordNotFound = errors.New("image record not found")
	ErrUploadFailed   = errors.New("failed to upload image to storage")
	ErrPersistFailed  = errors.New("failed to persist image record")
)
