package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Transport errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrTimeout            = fmt.Errorf("operation timed out")

	// Device-reported errors
	ErrDeviceFailure = fmt.Errorf("device reported failure")
	ErrFileExists    = fmt.Errorf("a file with that name already exists")
	ErrFileInUse     = fmt.Errorf("file is mapped to NFC tag(s), remove mappings first")
	ErrNoTag         = fmt.Errorf("no tag detected, place a tag on the reader")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidFilename = fmt.Errorf("only MP3 files allowed")
	ErrEmptyBatch      = fmt.Errorf("no files selected")
	ErrMissingTag      = fmt.Errorf("no tag ID given")
	ErrMissingSong     = fmt.Errorf("no song selected")

	// Operator decisions
	ErrAborted = fmt.Errorf("aborted")
)
