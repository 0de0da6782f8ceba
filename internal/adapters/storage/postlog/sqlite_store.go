package postlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"postpilot/internal/adapters/storage"
	domain "postpilot/internal/domain/postlog"
)

const selectColumns = `SELECT id, tenant_id, user_id, publication_id, campaign_id, account_id, media_file_id, platform,
	content, media_urls, platform_settings, status, platform_post_id, platform_post_url, platform_post_type,
	published_at, error_message, retry_count, last_retry_at, engagement, metadata, created_at, updated_at
	FROM post_log`

// SQLiteStore implements the post log Store interface using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new post log store.
// PRE: db is a valid, open database connection with migrations applied
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// CreateOrReuse upserts on the delivery slot. retry_count, id and created_at of an existing
// row survive; error_message is cleared. A slot owned by another tenant is left untouched.
// PRE: r has been validated
// POST: exactly one row exists for r.Key()
func (s *SQLiteStore) CreateOrReuse(ctx context.Context, r domain.Record) (domain.Record, error) {
	mediaURLs, settings, err := encodeContent(r)
	if err != nil {
		return domain.Record{}, err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO post_log (id, tenant_id, user_id, publication_id, campaign_id, account_id, media_file_id, platform,
		   content, media_urls, platform_settings, status, error_message, retry_count, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, '', 0, ?, ?)
		 ON CONFLICT(publication_id, account_id, media_file_id) DO UPDATE SET
		   user_id=excluded.user_id, campaign_id=excluded.campaign_id, platform=excluded.platform,
		   content=excluded.content, media_urls=excluded.media_urls,
		   platform_settings=excluded.platform_settings, status=excluded.status,
		   error_message='', updated_at=excluded.updated_at
		 WHERE post_log.tenant_id = excluded.tenant_id`,
		r.ID, r.TenantID, r.UserID, r.PublicationID, r.CampaignID, r.AccountID, r.MediaFileID, r.Platform,
		r.Content, mediaURLs, settings, r.Status,
		storage.FormatTime(r.CreatedAt), storage.FormatTime(r.UpdatedAt))
	if err != nil {
		return domain.Record{}, fmt.Errorf("upsert post log: %w", err)
	}

	stored, err := s.GetByKey(ctx, r.Key())
	if err != nil {
		return domain.Record{}, err
	}
	if stored.TenantID != r.TenantID {
		return domain.Record{}, domain.ErrRecordNotFound
	}
	return stored, nil
}

// GetByID retrieves a record inside the tenant.
// PRE: tenantID and id are non-empty
// POST: returns domain.ErrRecordNotFound when missing or foreign
func (s *SQLiteStore) GetByID(ctx context.Context, tenantID, id string) (domain.Record, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE id = ? AND tenant_id = ?`, id, tenantID)
	return scanRecord(row)
}

// GetByKey retrieves the record occupying a delivery slot.
// POST: returns domain.ErrRecordNotFound when the slot is empty
func (s *SQLiteStore) GetByKey(ctx context.Context, key domain.Key) (domain.Record, error) {
	row := s.db.QueryRowContext(ctx,
		selectColumns+` WHERE publication_id = ? AND account_id = ? AND media_file_id = ?`,
		key.PublicationID, key.AccountID, key.MediaFileID)
	return scanRecord(row)
}

// Save writes every mutable field of an existing record.
// PRE: r was loaded from this store
// POST: row updated, or domain.ErrRecordNotFound when (id, tenant) matched nothing
func (s *SQLiteStore) Save(ctx context.Context, r domain.Record) error {
	mediaURLs, settings, err := encodeContent(r)
	if err != nil {
		return err
	}
	engagement, err := json.Marshal(orEmptyInts(r.Engagement))
	if err != nil {
		return fmt.Errorf("encode engagement: %w", err)
	}
	metadata, err := json.Marshal(orEmptyMap(r.Metadata))
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE post_log SET
		   content = ?, media_urls = ?, platform_settings = ?, status = ?,
		   platform_post_id = ?, platform_post_url = ?, platform_post_type = ?, published_at = ?,
		   error_message = ?, retry_count = ?, last_retry_at = ?, engagement = ?, metadata = ?, updated_at = ?
		 WHERE id = ? AND tenant_id = ?`,
		r.Content, mediaURLs, settings, r.Status,
		r.PlatformPostID, r.PlatformPostURL, r.PlatformPostType, storage.FormatTime(r.PublishedAt),
		r.ErrorMessage, r.RetryCount, storage.FormatTime(r.LastRetryAt), string(engagement), string(metadata),
		storage.FormatTime(r.UpdatedAt),
		r.ID, r.TenantID)
	if err != nil {
		return fmt.Errorf("update post log: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrRecordNotFound
	}
	return nil
}

// ListByPublication returns the tenant's records for one publication.
// POST: ordered by created_at, then id
func (s *SQLiteStore) ListByPublication(ctx context.Context, tenantID, publicationID string) ([]domain.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		selectColumns+` WHERE tenant_id = ? AND publication_id = ? ORDER BY created_at ASC, id ASC`,
		tenantID, publicationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecords(rows)
}

// ListByCampaign returns the tenant's records for one campaign, narrowed to userID when set.
// POST: ordered by created_at, then id
func (s *SQLiteStore) ListByCampaign(ctx context.Context, tenantID, campaignID, userID string) ([]domain.Record, error) {
	query := selectColumns + ` WHERE tenant_id = ? AND campaign_id = ?`
	args := []any{tenantID, campaignID}
	if userID != "" {
		query += ` AND user_id = ?`
		args = append(args, userID)
	}
	query += ` ORDER BY created_at ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecords(rows)
}

func encodeContent(r domain.Record) (string, string, error) {
	urls := r.MediaURLs
	if urls == nil {
		urls = []string{}
	}
	mediaURLs, err := json.Marshal(urls)
	if err != nil {
		return "", "", fmt.Errorf("encode media urls: %w", err)
	}
	settings, err := json.Marshal(orEmptyMap(r.PlatformSettings))
	if err != nil {
		return "", "", fmt.Errorf("encode platform settings: %w", err)
	}
	return string(mediaURLs), string(settings), nil
}

func orEmptyMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

func orEmptyInts(m map[string]int) map[string]int {
	if m == nil {
		return map[string]int{}
	}
	return m
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row *sql.Row) (domain.Record, error) {
	r, err := scanInto(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Record{}, domain.ErrRecordNotFound
	}
	return r, err
}

func scanRecords(rows *sql.Rows) ([]domain.Record, error) {
	var records []domain.Record
	for rows.Next() {
		r, err := scanInto(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func scanInto(sc scanner) (domain.Record, error) {
	var r domain.Record
	var mediaURLs, settings, engagement, metadata string
	var publishedAt, lastRetryAt, createdAt, updatedAt string
	err := sc.Scan(&r.ID, &r.TenantID, &r.UserID, &r.PublicationID, &r.CampaignID, &r.AccountID, &r.MediaFileID,
		&r.Platform, &r.Content, &mediaURLs, &settings, &r.Status, &r.PlatformPostID, &r.PlatformPostURL,
		&r.PlatformPostType, &publishedAt, &r.ErrorMessage, &r.RetryCount, &lastRetryAt, &engagement, &metadata,
		&createdAt, &updatedAt)
	if err != nil {
		return domain.Record{}, err
	}
	if err := json.Unmarshal([]byte(mediaURLs), &r.MediaURLs); err != nil {
		return domain.Record{}, fmt.Errorf("decode media urls: %w", err)
	}
	if err := json.Unmarshal([]byte(settings), &r.PlatformSettings); err != nil {
		return domain.Record{}, fmt.Errorf("decode platform settings: %w", err)
	}
	if err := json.Unmarshal([]byte(engagement), &r.Engagement); err != nil {
		return domain.Record{}, fmt.Errorf("decode engagement: %w", err)
	}
	if err := json.Unmarshal([]byte(metadata), &r.Metadata); err != nil {
		return domain.Record{}, fmt.Errorf("decode metadata: %w", err)
	}
	r.PublishedAt = storage.ParseTime(publishedAt)
	r.LastRetryAt = storage.ParseTime(lastRetryAt)
	r.CreatedAt = storage.ParseTime(createdAt)
	r.UpdatedAt = storage.ParseTime(updatedAt)
	return r, nil
}
