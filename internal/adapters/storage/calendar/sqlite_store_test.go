package calendar

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
	domain "postpilot/internal/domain/calendar"
)

var day = time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	require.NoError(t, storage.InitDB(db))
	t.Cleanup(func() { db.Close() })
	return db
}

func item(id, tenant string, start time.Time) domain.Event {
	return domain.Event{
		ID: id, TenantID: tenant, UserID: "u1", PublicationID: "pub-" + id, CampaignID: "c1",
		Platform: "instagram", Title: "post " + id, Status: domain.StatusScheduled,
		StartAt: start, CreatedAt: day, UpdatedAt: day,
	}
}

func seed(t *testing.T, s *SQLiteStore, events ...domain.Event) {
	t.Helper()
	for _, e := range events {
		require.NoError(t, s.Save(context.Background(), e))
	}
}

func ids(events []domain.Event) []string {
	out := make([]string, 0, len(events))
	for _, e := range events {
		out = append(out, e.ID)
	}
	return out
}

func TestSQLiteStore_SaveAndGet(t *testing.T) {
	s := NewSQLiteStore(setupTestDB(t))
	e := item("1", "t1", day.Add(9*time.Hour))
	e.EndAt = e.StartAt.Add(time.Hour)
	seed(t, s, e)

	got, err := s.GetByID(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, e, got)

	_, err = s.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSQLiteStore_SaveCannotChangeTenant(t *testing.T) {
	s := NewSQLiteStore(setupTestDB(t))
	seed(t, s, item("1", "t1", day))

	hijack := item("1", "t2", day.Add(time.Hour))
	require.NoError(t, s.Save(context.Background(), hijack))

	got, err := s.GetByID(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, "t1", got.TenantID)
	assert.Equal(t, day, got.StartAt)
}

func TestSQLiteStore_Reschedule(t *testing.T) {
	s := NewSQLiteStore(setupTestDB(t))
	ctx := context.Background()
	published := item("2", "t1", day)
	published.Status = domain.StatusPublished
	seed(t, s, item("1", "t1", day), published)

	newStart := day.Add(48 * time.Hour)
	require.NoError(t, s.Reschedule(ctx, "t1", "1", newStart, time.Time{}, day))
	got, _ := s.GetByID(ctx, "1")
	assert.Equal(t, newStart, got.StartAt)

	assert.ErrorIs(t, s.Reschedule(ctx, "t2", "1", day, time.Time{}, day), domain.ErrNotFound, "foreign tenant")
	assert.ErrorIs(t, s.Reschedule(ctx, "t1", "2", newStart, time.Time{}, day), domain.ErrNotFound, "published")
	assert.ErrorIs(t, s.Reschedule(ctx, "t1", "999", newStart, time.Time{}, day), domain.ErrNotFound, "missing")
}

func TestSQLiteStore_Delete(t *testing.T) {
	s := NewSQLiteStore(setupTestDB(t))
	ctx := context.Background()
	seed(t, s, item("1", "t1", day))

	assert.ErrorIs(t, s.Delete(ctx, "t2", "1"), domain.ErrNotFound)
	_, err := s.GetByID(ctx, "1")
	require.NoError(t, err, "foreign delete must not remove the row")

	require.NoError(t, s.Delete(ctx, "t1", "1"))
	_, err = s.GetByID(ctx, "1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSQLiteStore_ListInRange(t *testing.T) {
	s := NewSQLiteStore(setupTestDB(t))
	ctx := context.Background()

	spanning := item("span", "t1", day.Add(-24*time.Hour))
	spanning.EndAt = day.Add(2 * time.Hour)
	tiktok := item("tiktok", "t1", day.Add(10*time.Hour))
	tiktok.Platform = "tiktok"
	otherCampaign := item("other", "t1", day.Add(11*time.Hour))
	otherCampaign.CampaignID = "c2"
	failed := item("failed", "t1", day.Add(12*time.Hour))
	failed.Status = domain.StatusFailed

	seed(t, s,
		item("before", "t1", day.Add(-time.Hour)),
		spanning,
		item("at-start", "t1", day),
		tiktok,
		otherCampaign,
		failed,
		item("after", "t1", day.Add(25*time.Hour)),
		item("foreign", "t2", day.Add(9*time.Hour)),
	)
	end := day.Add(24 * time.Hour)

	all, err := s.ListInRange(ctx, "t1", day, end, domain.Filter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"span", "at-start", "tiktok", "other", "failed"}, ids(all))

	got, err := s.ListInRange(ctx, "t1", day, end, domain.Filter{Platforms: []string{"tiktok"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"tiktok"}, ids(got))

	got, err = s.ListInRange(ctx, "t1", day, end, domain.Filter{CampaignID: "c1", Statuses: []string{domain.StatusScheduled}})
	require.NoError(t, err)
	assert.Equal(t, []string{"span", "at-start", "tiktok"}, ids(got))

	got, err = s.ListInRange(ctx, "t2", day, end, domain.Filter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"foreign"}, ids(got))
}

func TestSQLiteStore_DeleteDriverError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("DELETE FROM scheduled_event").
		WithArgs("1", "t1").
		WillReturnError(errors.New("database is locked"))

	err = NewSQLiteStore(db).Delete(context.Background(), "t1", "1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
