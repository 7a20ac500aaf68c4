package radar

import (
	"context"
	"errors"
	"sync"
	"time"
)

type fakeStore struct {
	mu         sync.Mutex
	records    map[string]VersionRecord
	writes     int
	sessions   int
	closed     int
	sessionErr error
	getErr     error
	upsertErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: map[string]VersionRecord{}}
}

func (s *fakeStore) Session(context.Context) (Session, error) {
	if s.sessionErr != nil {
		return nil, s.sessionErr
	}
	s.mu.Lock()
	s.sessions++
	s.mu.Unlock()
	return fakeSession{s: s}, nil
}

func (s *fakeStore) Close(context.Context) error { return nil }

type fakeSession struct{ s *fakeStore }

func (f fakeSession) Get(_ context.Context, name string) (VersionRecord, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.getErr != nil {
		return VersionRecord{}, f.s.getErr
	}
	rec, ok := f.s.records[name]
	if !ok {
		return VersionRecord{}, ErrNotFound
	}
	return rec, nil
}

func (f fakeSession) Upsert(_ context.Context, name, version string, at time.Time) (VersionRecord, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.upsertErr != nil {
		return VersionRecord{}, f.s.upsertErr
	}
	rec, ok := f.s.records[name]
	if !ok {
		rec = VersionRecord{SoftwareName: name, CreatedAt: at}
	}
	rec.Version = version
	rec.UpdatedAt = at
	f.s.records[name] = rec
	f.s.writes++
	return rec, nil
}

func (f fakeSession) Close(context.Context) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	f.s.closed++
	return nil
}

type sentNotification struct {
	name    string
	version string
}

type fakeNotifier struct {
	sent []sentNotification
	err  error
}

func (n *fakeNotifier) Notify(_ context.Context, name, version string) error {
	n.sent = append(n.sent, sentNotification{name: name, version: version})
	return n.err
}

type fakeFetcher struct {
	body  string
	err   error
	calls int
}

func (f *fakeFetcher) Fetch(context.Context, string) ([]byte, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []byte(f.body), nil
}

type panicFetcher struct{}

func (panicFetcher) Fetch(context.Context, string) ([]byte, error) {
	panic("transport exploded")
}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type fixedIDs struct {
	id  string
	err error
}

func (g fixedIDs) NewID() (string, error) {
	if g.err != nil {
		return "", g.err
	}
	return g.id, nil
}

var errBoom = errors.New("boom")
