package postlog

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"postpilot/internal/adapters/storage"
	domain "postpilot/internal/domain/postlog"
)

var (
	t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	t1 = t0.Add(time.Minute)
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	require.NoError(t, storage.InitDB(db))
	t.Cleanup(func() { db.Close() })
	return db
}

func pending(id, content string, at time.Time) domain.Record {
	return domain.Record{
		ID: id, TenantID: "t1", UserID: "u1", PublicationID: "42", CampaignID: "c1", AccountID: "7", MediaFileID: "3",
		Platform: "instagram", Content: content, MediaURLs: []string{"https://cdn/a.mp4"},
		PlatformSettings: map[string]any{"type": "reel"}, Status: domain.StatusPending,
		CreatedAt: at, UpdatedAt: at,
	}
}

// TestCreateOrReuse_SecondCallWins verifies one row per slot with the last caller's content.
func TestCreateOrReuse_SecondCallWins(t *testing.T) {
	store := NewSQLiteStore(setupTestDB(t))
	ctx := context.Background()

	first, err := store.CreateOrReuse(ctx, pending("log-a", "first caption", t0))
	require.NoError(t, err)
	assert.Equal(t, "log-a", first.ID)

	second, err := store.CreateOrReuse(ctx, pending("log-b", "second caption", t1))
	require.NoError(t, err)
	assert.Equal(t, "log-a", second.ID, "existing row must be reused")
	assert.Equal(t, "second caption", second.Content)
	assert.Equal(t, t0, second.CreatedAt)
	assert.Equal(t, t1, second.UpdatedAt)

	all, err := store.ListByPublication(ctx, "t1", "42")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

// TestCreateOrReuse_KeepsRetryCountClearsError verifies which fields survive a re-attempt.
func TestCreateOrReuse_KeepsRetryCountClearsError(t *testing.T) {
	store := NewSQLiteStore(setupTestDB(t))
	ctx := context.Background()

	rec, err := store.CreateOrReuse(ctx, pending("log-a", "v1", t0))
	require.NoError(t, err)
	rec.MarkFailed("token expired", t0)
	rec.RetryCount = 2
	require.NoError(t, store.Save(ctx, rec))

	again, err := store.CreateOrReuse(ctx, pending("log-b", "v2", t1))
	require.NoError(t, err)
	assert.Equal(t, 2, again.RetryCount)
	assert.Empty(t, again.ErrorMessage)
	assert.Equal(t, domain.StatusPending, again.Status)
}

// TestCreateOrReuse_NoMediaIsItsOwnSlot verifies the empty media id is a distinct key.
func TestCreateOrReuse_NoMediaIsItsOwnSlot(t *testing.T) {
	store := NewSQLiteStore(setupTestDB(t))
	ctx := context.Background()

	withMedia := pending("log-a", "x", t0)
	noMedia := pending("log-b", "x", t0)
	noMedia.MediaFileID = ""

	_, err := store.CreateOrReuse(ctx, withMedia)
	require.NoError(t, err)
	_, err = store.CreateOrReuse(ctx, noMedia)
	require.NoError(t, err)
	_, err = store.CreateOrReuse(ctx, noMedia)
	require.NoError(t, err)

	all, err := store.ListByPublication(ctx, "t1", "42")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

// TestCreateOrReuse_ForeignTenantUntouched verifies a slot owned by another tenant is not overwritten.
func TestCreateOrReuse_ForeignTenantUntouched(t *testing.T) {
	store := NewSQLiteStore(setupTestDB(t))
	ctx := context.Background()

	_, err := store.CreateOrReuse(ctx, pending("log-a", "mine", t0))
	require.NoError(t, err)

	intruder := pending("log-x", "theirs", t1)
	intruder.TenantID = "t2"
	_, err = store.CreateOrReuse(ctx, intruder)
	assert.ErrorIs(t, err, domain.ErrRecordNotFound)

	got, err := store.GetByID(ctx, "t1", "log-a")
	require.NoError(t, err)
	assert.Equal(t, "mine", got.Content)
}

// TestGetByID_TenantScoped verifies foreign and missing ids are both not found.
func TestGetByID_TenantScoped(t *testing.T) {
	store := NewSQLiteStore(setupTestDB(t))
	ctx := context.Background()
	_, err := store.CreateOrReuse(ctx, pending("log-a", "x", t0))
	require.NoError(t, err)

	_, err = store.GetByID(ctx, "t2", "log-a")
	assert.ErrorIs(t, err, domain.ErrRecordNotFound)
	_, err = store.GetByID(ctx, "t1", "nope")
	assert.ErrorIs(t, err, domain.ErrRecordNotFound)
}

// TestSave_RoundTripsPublishedFields verifies the JSON columns and timestamps.
func TestSave_RoundTripsPublishedFields(t *testing.T) {
	store := NewSQLiteStore(setupTestDB(t))
	ctx := context.Background()

	rec, err := store.CreateOrReuse(ctx, pending("log-a", "x", t0))
	require.NoError(t, err)
	rec.MarkPublished(domain.PlatformResponse{
		PostID: "ig_1", PostURL: "https://instagram.com/p/1", PostType: "reel",
		Raw: map[string]any{"likes": 3, "permalink_owner": "brand"},
	}, t1)
	require.NoError(t, store.Save(ctx, rec))

	got, err := store.GetByID(ctx, "t1", "log-a")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPublished, got.Status)
	assert.Equal(t, "ig_1", got.PlatformPostID)
	assert.Equal(t, t1, got.PublishedAt)
	assert.Equal(t, 3, got.Engagement["likes"])
	assert.Equal(t, "brand", got.Metadata["permalink_owner"])
	assert.Equal(t, []string{"https://cdn/a.mp4"}, got.MediaURLs)
	assert.Equal(t, "reel", got.PlatformSettings["type"])
}

// TestSave_ForeignTenant verifies a write scoped to the wrong tenant matches nothing.
func TestSave_ForeignTenant(t *testing.T) {
	store := NewSQLiteStore(setupTestDB(t))
	ctx := context.Background()
	rec, err := store.CreateOrReuse(ctx, pending("log-a", "x", t0))
	require.NoError(t, err)

	rec.TenantID = "t2"
	assert.ErrorIs(t, store.Save(ctx, rec), domain.ErrRecordNotFound)
}

// TestListByCampaign_UserFilter verifies the optional user narrowing.
func TestListByCampaign_UserFilter(t *testing.T) {
	store := NewSQLiteStore(setupTestDB(t))
	ctx := context.Background()

	a := pending("log-a", "x", t0)
	b := pending("log-b", "x", t1)
	b.AccountID = "8"
	b.UserID = "u2"
	_, err := store.CreateOrReuse(ctx, a)
	require.NoError(t, err)
	_, err = store.CreateOrReuse(ctx, b)
	require.NoError(t, err)

	all, err := store.ListByCampaign(ctx, "t1", "c1", "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	mine, err := store.ListByCampaign(ctx, "t1", "c1", "u2")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "log-b", mine[0].ID)

	other, err := store.ListByCampaign(ctx, "t2", "c1", "")
	require.NoError(t, err)
	assert.Empty(t, other)
}

// TestCreateOrReuse_DriverError verifies write failures are wrapped and returned.
func TestCreateOrReuse_DriverError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO post_log").WillReturnError(errors.New("disk I/O error"))

	_, err = NewSQLiteStore(db).CreateOrReuse(context.Background(), pending("log-a", "x", t0))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upsert post log")
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestSave_ZeroRowsIsNotFound verifies the affected-row check.
func TestSave_ZeroRowsIsNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("UPDATE post_log SET").WillReturnResult(sqlmock.NewResult(0, 0))

	err = NewSQLiteStore(db).Save(context.Background(), pending("log-a", "x", t0))
	assert.ErrorIs(t, err, domain.ErrRecordNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
