package content

import "errors"

var (
	// ErrAuthenticationRequired is returned when no valid session can be established
	ErrAuthenticationRequired = errors.New("authentication required")
	// ErrInvalidFileID is returned for file ids that are not UUIDs
	ErrInvalidFileID = errors.New("invalid file id")
)
