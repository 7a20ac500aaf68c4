package radar

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var detectorNow = time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

func newTestDetector(store *fakeStore, notifier *fakeNotifier) *Detector {
	return NewDetector(store, notifier, fixedClock{now: detectorNow}, nil)
}

func TestDetectAndApplyCreatesRecordOnEmptyStore(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	notifier := &fakeNotifier{}

	outcome, err := newTestDetector(store, notifier).DetectAndApply(context.Background(), "App", "1.2")
	require.NoError(t, err)
	require.True(t, outcome.Changed)
	require.Empty(t, outcome.Previous)
	require.Equal(t, "1.2", outcome.Record.Version)
	require.Equal(t, detectorNow, outcome.Record.CreatedAt)

	require.Equal(t, "1.2", store.records["App"].Version)
	require.Equal(t, 1, store.writes)
	require.Equal(t, []sentNotification{{name: "App", version: "1.2"}}, notifier.sent)
}

func TestDetectAndApplyIsIdempotent(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	notifier := &fakeNotifier{}
	detector := newTestDetector(store, notifier)

	_, err := detector.DetectAndApply(context.Background(), "App", "1.2")
	require.NoError(t, err)
	outcome, err := detector.DetectAndApply(context.Background(), "App", "1.2")
	require.NoError(t, err)

	require.False(t, outcome.Changed)
	require.Equal(t, 1, store.writes)
	require.Len(t, notifier.sent, 1)
	require.Equal(t, store.sessions, store.closed)
}

func TestDetectAndApplyUpdatesOnChange(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.records["App"] = VersionRecord{SoftwareName: "App", Version: "1.2", CreatedAt: detectorNow.Add(-time.Hour)}
	notifier := &fakeNotifier{}

	outcome, err := newTestDetector(store, notifier).DetectAndApply(context.Background(), "App", "1.3")
	require.NoError(t, err)
	require.True(t, outcome.Changed)
	require.Equal(t, "1.2", outcome.Previous)
	require.Equal(t, "1.3", store.records["App"].Version)
	require.Equal(t, detectorNow.Add(-time.Hour), store.records["App"].CreatedAt)
	require.Equal(t, []sentNotification{{name: "App", version: "1.3"}}, notifier.sent)
}

func TestDetectAndApplyTreatsDowngradeAsChange(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.records["App"] = VersionRecord{SoftwareName: "App", Version: "2.10"}
	notifier := &fakeNotifier{}

	outcome, err := newTestDetector(store, notifier).DetectAndApply(context.Background(), "App", "2.9")
	require.NoError(t, err)
	require.True(t, outcome.Changed)
	require.Len(t, notifier.sent, 1)
}

func TestDetectAndApplyKeepsWriteWhenNotifyFails(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	notifier := &fakeNotifier{err: errBoom}

	outcome, err := newTestDetector(store, notifier).DetectAndApply(context.Background(), "App", "1.2")
	require.ErrorIs(t, err, ErrNotification)
	require.ErrorIs(t, err, errBoom)
	require.True(t, outcome.Changed)
	require.Equal(t, "1.2", store.records["App"].Version)
}

func TestDetectAndApplyStorageErrors(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name  string
		setup func(*fakeStore)
	}{
		{"session", func(s *fakeStore) { s.sessionErr = errBoom }},
		{"get", func(s *fakeStore) { s.getErr = errBoom }},
		{"upsert", func(s *fakeStore) { s.upsertErr = errBoom }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			store := newFakeStore()
			tc.setup(store)
			notifier := &fakeNotifier{}

			_, err := newTestDetector(store, notifier).DetectAndApply(context.Background(), "App", "1.2")
			require.ErrorIs(t, err, ErrStorage)
			require.ErrorIs(t, err, errBoom)
			require.Empty(t, notifier.sent)
			require.Equal(t, store.sessions, store.closed)
		})
	}
}

func TestLookup(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	_, err := Lookup(context.Background(), store, "App")
	require.ErrorIs(t, err, ErrNotFound)

	store.records["App"] = VersionRecord{SoftwareName: "App", Version: "1.2"}
	rec, err := Lookup(context.Background(), store, "App")
	require.NoError(t, err)
	require.Equal(t, "1.2", rec.Version)

	store.getErr = errBoom
	_, err = Lookup(context.Background(), store, "App")
	require.ErrorIs(t, err, ErrStorage)
	require.Equal(t, store.sessions, store.closed)
}
