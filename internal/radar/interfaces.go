package radar

import (
	"context"
	"time"
)

// Store hands out scoped sessions against the version records.
type Store interface {
	Session(ctx context.Context) (Session, error)
	Close(ctx context.Context) error
}

// Session is a scoped handle on the store. Callers must Close it on every path.
type Session interface {
	// Get returns ErrNotFound when no record exists for softwareName.
	Get(ctx context.Context, softwareName string) (VersionRecord, error)
	// Upsert creates or overwrites the record keyed by softwareName.
	Upsert(ctx context.Context, softwareName, version string, at time.Time) (VersionRecord, error)
	Close(ctx context.Context) error
}

// Fetcher retrieves the raw body of a page.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Notifier announces a newly detected version.
type Notifier interface {
	Notify(ctx context.Context, softwareName, version string) error
}

// DocumentQuery returns the trimmed text of every node matching selector, in document order.
type DocumentQuery interface {
	Texts(markup, selector string) ([]string, error)
}

// PatternMatch returns all non-overlapping matches of pattern in text.
type PatternMatch interface {
	FindAll(text, pattern string) ([]string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces scrape run IDs.
type IDGenerator interface {
	NewID() (string, error)
}
