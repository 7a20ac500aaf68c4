package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/version-radar/internal/radar"
)

var recordColumns = []string{"software_name", "version", "created_at", "updated_at"}

func newMockStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	store, err := NewWithQuerier(mock, "")
	require.NoError(t, err)
	return store, mock
}

func TestMigrateCreatesTable(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS versions").
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))

	require.NoError(t, store.Migrate(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetMissingRecordReturnsNotFound(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectQuery("SELECT software_name, version, created_at, updated_at").
		WithArgs("App").
		WillReturnError(pgx.ErrNoRows)

	sess, err := store.Session(context.Background())
	require.NoError(t, err)
	defer sess.Close(context.Background()) //nolint:errcheck // no-op release

	_, err = sess.Get(context.Background(), "App")
	require.ErrorIs(t, err, radar.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetReturnsRecord(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	created := time.Unix(1700000000, 0).UTC()
	updated := created.Add(time.Hour)
	mock.ExpectQuery("SELECT software_name, version, created_at, updated_at").
		WithArgs("App").
		WillReturnRows(pgxmock.NewRows(recordColumns).AddRow("App", "1.2", created, updated))

	sess, err := store.Session(context.Background())
	require.NoError(t, err)
	rec, err := sess.Get(context.Background(), "App")
	require.NoError(t, err)
	require.Equal(t, radar.VersionRecord{SoftwareName: "App", Version: "1.2", CreatedAt: created, UpdatedAt: updated}, rec)
	require.NoError(t, sess.Close(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetWrapsDriverErrors(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectQuery("SELECT software_name").
		WithArgs("App").
		WillReturnError(errors.New("connection reset"))

	sess, err := store.Session(context.Background())
	require.NoError(t, err)
	_, err = sess.Get(context.Background(), "App")
	require.Error(t, err)
	require.NotErrorIs(t, err, radar.ErrNotFound)
	require.Contains(t, err.Error(), "connection reset")
}

func TestUpsertUsesOnConflict(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	at := time.Unix(1700003600, 0).UTC()
	created := at.Add(-24 * time.Hour)
	mock.ExpectQuery("INSERT INTO versions").
		WithArgs("App", "1.3", at).
		WillReturnRows(pgxmock.NewRows(recordColumns).AddRow("App", "1.3", created, at))

	sess, err := store.Session(context.Background())
	require.NoError(t, err)
	rec, err := sess.Upsert(context.Background(), "App", "1.3", at)
	require.NoError(t, err)
	require.Equal(t, "1.3", rec.Version)
	require.Equal(t, created, rec.CreatedAt)
	require.Equal(t, at, rec.UpdatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertError(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectQuery("INSERT INTO versions").
		WithArgs("App", "1.3", pgxmock.AnyArg()).
		WillReturnError(errors.New("read only transaction"))

	sess, err := store.Session(context.Background())
	require.NoError(t, err)
	_, err = sess.Upsert(context.Background(), "App", "1.3", time.Now())
	require.ErrorContains(t, err, "upsert version")
}

func TestSessionCloseReleasesOnce(t *testing.T) {
	t.Parallel()

	released := 0
	store := &Store{
		acquire: func(context.Context) (querier, func(), error) {
			return nil, func() { released++ }, nil
		},
		table: defaultTable,
	}
	sess, err := store.Session(context.Background())
	require.NoError(t, err)
	require.NoError(t, sess.Close(context.Background()))
	require.NoError(t, sess.Close(context.Background()))
	require.Equal(t, 1, released)
}

func TestConstructorValidation(t *testing.T) {
	t.Parallel()

	_, err := NewWithQuerier(nil, "versions")
	require.Error(t, err)

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	_, err = NewWithQuerier(mock, "versions; DROP TABLE users")
	require.ErrorContains(t, err, "invalid table name")

	_, err = New(context.Background(), Config{})
	require.ErrorContains(t, err, "dsn is required")

	_, err = New(context.Background(), Config{DSN: "postgres://localhost/db", Table: "bad-name"})
	require.ErrorContains(t, err, "invalid table name")
}
