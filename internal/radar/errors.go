package radar

import "errors"

// Error classes surfaced by the scrape path and the store.
var (
	ErrFetch         = errors.New("fetch failed")
	ErrNoCandidates  = errors.New("no versions found")
	ErrNoFormatMatch = errors.New("no version matching the format")
	ErrStorage       = errors.New("storage error")
	ErrNotification  = errors.New("notification failed")
	ErrNotFound      = errors.New("version record not found")
)
