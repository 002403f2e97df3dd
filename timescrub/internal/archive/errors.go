package archive

import "errors"

// ErrNotFound is returned when the backend answers 404 for a resource.
var ErrNotFound = errors.New("archive: not found")

// ErrNetwork is returned for transport failures and 5xx answers.
var ErrNetwork = errors.New("archive: network failure")
