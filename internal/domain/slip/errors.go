package slip

import "errors"

var (
	ErrMalformedPayload = errors.New("malformed promptpay payload")
	ErrAmountNotFound   = errors.New("no amount could be read from the slip")
	ErrAmountMismatch   = errors.New("slip amount does not match the amount due")

	ErrEmptyImage      = errors.New("slip image is empty")
	ErrInvalidEncoding = errors.New("slip image must be a data URL or base64")
	ErrImageTooLarge   = errors.New("slip image exceeds maximum allowed size")
	ErrInvalidMimeType = errors.New("slip image type is not allowed")
	ErrUploadNotFound  = errors.New("slip upload not found")
)
