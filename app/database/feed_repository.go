package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var _ FeedRepositoryInterface = (*FeedRepository)(nil)

// FeedRepository handles database operations for feeds
type FeedRepository struct {
	db *DB
}

// NewFeedRepository creates a new feed repository
func NewFeedRepository(db *DB) *FeedRepository {
	return &FeedRepository{db: db}
}

const feedColumns = `id, owner_key, display_name, access_token, bot_id, workspace_id,
	database_id, properties, source, created_at, updated_at`

// CreateFeed inserts a new feed. An empty ID is replaced with a fresh UUID
// and the timestamps are filled in on the passed struct.
func (r *FeedRepository) CreateFeed(feed *Feed) error {
	if feed.ID == "" {
		feed.ID = uuid.NewString()
	}
	if feed.Source == "" {
		feed.Source = FeedSourceOAuth
	}
	if feed.Properties == "" {
		feed.Properties = "{}"
	}
	now := time.Now().UTC()
	feed.CreatedAt = now
	feed.UpdatedAt = now

	_, err := r.db.Exec(`
		INSERT INTO feeds (`+feedColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, feed.ID, nullString(feed.OwnerKey), feed.DisplayName, feed.AccessToken, feed.BotID,
		feed.WorkspaceID, feed.DatabaseID, feed.Properties, feed.Source, now, now)
	if err != nil {
		return fmt.Errorf("failed to create feed: %w", err)
	}

	return nil
}

// GetFeed returns nil, nil when no feed has the given id.
func (r *FeedRepository) GetFeed(id string) (*Feed, error) {
	row := r.db.QueryRow(`SELECT `+feedColumns+` FROM feeds WHERE id = ?`, id)

	feed, err := scanFeed(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get feed: %w", err)
	}

	return feed, nil
}

func (r *FeedRepository) ListFeeds() ([]Feed, error) {
	rows, err := r.db.Query(`SELECT ` + feedColumns + ` FROM feeds ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list feeds: %w", err)
	}
	defer rows.Close()

	return collectFeeds(rows)
}

func (r *FeedRepository) ListFeedsByOwner(ownerKey string) ([]Feed, error) {
	rows, err := r.db.Query(`
		SELECT `+feedColumns+` FROM feeds
		WHERE owner_key = ?
		ORDER BY created_at DESC
	`, ownerKey)
	if err != nil {
		return nil, fmt.Errorf("failed to list owner feeds: %w", err)
	}
	defer rows.Close()

	return collectFeeds(rows)
}

func (r *FeedRepository) CountFeedsByOwner(ownerKey string) (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM feeds WHERE owner_key = ?`, ownerKey).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count owner feeds: %w", err)
	}
	return count, nil
}

func (r *FeedRepository) GetFeedCount() (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM feeds`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get feed count: %w", err)
	}
	return count, nil
}

// UpdateFeedConfig stores the collection id and serialized mapping of a feed.
// An empty display name keeps the current one.
func (r *FeedRepository) UpdateFeedConfig(id, displayName, databaseID, properties string) error {
	result, err := r.db.Exec(`
		UPDATE feeds
		SET display_name = COALESCE(NULLIF(?, ''), display_name),
		    database_id = ?, properties = ?, updated_at = ?
		WHERE id = ?
	`, displayName, databaseID, properties, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update feed config: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update feed config: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("failed to update feed config: feed %s not found", id)
	}

	return nil
}

// UpsertStaticFeed registers a feed defined on disk. It reports whether the
// stored row changed.
func (r *FeedRepository) UpsertStaticFeed(id, displayName, accessToken, databaseID, properties string) (bool, error) {
	existing, err := r.GetFeed(id)
	if err != nil {
		return false, fmt.Errorf("failed to check existing feed: %w", err)
	}

	if existing == nil {
		err = r.CreateFeed(&Feed{
			ID:          id,
			DisplayName: displayName,
			AccessToken: accessToken,
			DatabaseID:  databaseID,
			Properties:  properties,
			Source:      FeedSourceStatic,
		})
		if err != nil {
			return false, err
		}
		return true, nil
	}

	if existing.DisplayName == displayName && existing.AccessToken == accessToken &&
		existing.DatabaseID == databaseID && existing.Properties == properties &&
		existing.Source == FeedSourceStatic {
		return false, nil
	}

	_, err = r.db.Exec(`
		UPDATE feeds
		SET display_name = ?, access_token = ?, database_id = ?, properties = ?,
		    source = ?, updated_at = ?
		WHERE id = ?
	`, displayName, accessToken, databaseID, properties, FeedSourceStatic, time.Now().UTC(), id)
	if err != nil {
		return false, fmt.Errorf("failed to upsert static feed: %w", err)
	}

	return true, nil
}

func (r *FeedRepository) DeleteFeed(id string) error {
	_, err := r.db.Exec(`DELETE FROM feeds WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete feed: %w", err)
	}
	return nil
}

// DeleteOwnedFeed removes a feed only when it belongs to ownerKey.
func (r *FeedRepository) DeleteOwnedFeed(id, ownerKey string) (bool, error) {
	result, err := r.db.Exec(`DELETE FROM feeds WHERE id = ? AND owner_key = ?`, id, ownerKey)
	if err != nil {
		return false, fmt.Errorf("failed to delete feed: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to delete feed: %w", err)
	}

	return affected > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFeed(row rowScanner) (*Feed, error) {
	var feed Feed
	var ownerKey sql.NullString

	err := row.Scan(&feed.ID, &ownerKey, &feed.DisplayName, &feed.AccessToken, &feed.BotID,
		&feed.WorkspaceID, &feed.DatabaseID, &feed.Properties, &feed.Source,
		&feed.CreatedAt, &feed.UpdatedAt)
	if err != nil {
		return nil, err
	}
	feed.OwnerKey = ownerKey.String

	return &feed, nil
}

func collectFeeds(rows *sql.Rows) ([]Feed, error) {
	var feeds []Feed
	for rows.Next() {
		feed, err := scanFeed(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan feed: %w", err)
		}
		feeds = append(feeds, *feed)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate feeds: %w", err)
	}

	return feeds, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
