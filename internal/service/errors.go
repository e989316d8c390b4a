package service

import "errors"

// Boundary error taxonomy. Parse failures keep their parser sentinels; the
// errors below cover the gates and store operations owned by the service.
var (
	ErrInvalidFileType   = errors.New("file type not accepted: use .csv, .xlsx or .xls")
	ErrFileTooLarge      = errors.New("file exceeds the maximum accepted size")
	ErrPersistenceFailed = errors.New("guest list could not be persisted")
	ErrLoadFailed        = errors.New("guests could not be loaded from the store")
	ErrUpdateFailed      = errors.New("guest confirmation could not be updated")
)
