package backup

import "errors"

var (
	ErrInvalidBackup = errors.New("invalid backup")
	ErrNoBucket      = errors.New("s3 bucket not configured")
)
