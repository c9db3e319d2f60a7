package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/WesWeCan/mu-morphing-mirror/internal/pose"
	"github.com/WesWeCan/mu-morphing-mirror/internal/regions"
	"github.com/jackc/pgx/v5"
)

// ErrNotFound is returned when a lookup by id matches no row.
var ErrNotFound = errors.New("not found")

// Frame outcomes recorded per processed keyframe.
const (
	StatusDetected       = "detected"
	StatusNoDetection    = "no_detection"
	StatusMissingRegions = "missing_regions"
	StatusWorkerError    = "worker_error"
)

// Store manages the PostgreSQL connection for corpses and per-frame regions.
type Store struct {
	conn *pgx.Conn
}

// Corpse is a registered body recording together with its base images.
type Corpse struct {
	ID         int64
	Path       string
	BaseImages []string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// FrameRecord is the outcome of one processed keyframe.
type FrameRecord struct {
	Index   int
	Status  string
	Detail  string
	Regions []regions.Region // overlay regions, empty unless Status is StatusDetected
}

// FrameStatus is the stored outcome of one keyframe, without its regions.
type FrameStatus struct {
	Index  int
	Status string
	Detail string
}

// StoredRegion is one persisted region row.
type StoredRegion struct {
	FrameIndex int
	Label      string
	X, Y       float64
	Width      float64
	Height     float64
	Keypoints  []pose.Keypoint
}

// VideoInfo describes a scanned video and its frame outcomes.
type VideoInfo struct {
	ID        string
	Path      string
	FPS       float64
	IndexedAt time.Time
	Frames    map[string]int // status -> count
}

// New establishes a connection to the database and ensures the schema is initialized.
func New(ctx context.Context, connString string) (*Store, error) {
	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		return nil, err
	}

	if err := initSchema(ctx, conn); err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	return &Store{conn: conn}, nil
}

// initSchema creates the tables if they don't exist (Auto-Migration).
func initSchema(ctx context.Context, conn *pgx.Conn) error {
	query := `
		CREATE TABLE IF NOT EXISTS corpses (
			id BIGSERIAL PRIMARY KEY,
			path TEXT NOT NULL,
			base_images JSONB NOT NULL DEFAULT '[]',
			created_at TIMESTAMPTZ DEFAULT NOW(),
			updated_at TIMESTAMPTZ DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS video_metadata (
			id TEXT PRIMARY KEY,
			path TEXT NOT NULL,
			fps DOUBLE PRECISION NOT NULL DEFAULT 0,
			indexed_at TIMESTAMPTZ DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS frames (
			video_id TEXT REFERENCES video_metadata(id) ON DELETE CASCADE,
			frame_index INT NOT NULL,
			status TEXT NOT NULL,
			detail TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (video_id, frame_index)
		);
		CREATE TABLE IF NOT EXISTS frame_regions (
			id BIGSERIAL PRIMARY KEY,
			video_id TEXT REFERENCES video_metadata(id) ON DELETE CASCADE,
			frame_index INT NOT NULL,
			label TEXT NOT NULL,
			x DOUBLE PRECISION NOT NULL,
			y DOUBLE PRECISION NOT NULL,
			width DOUBLE PRECISION NOT NULL,
			height DOUBLE PRECISION NOT NULL,
			keypoints JSONB NOT NULL DEFAULT '[]'
		);
		CREATE INDEX IF NOT EXISTS frame_regions_video_frame_idx ON frame_regions (video_id, frame_index);
	`
	_, err := conn.Exec(ctx, query)
	return err
}

// Close terminates the database connection.
func (s *Store) Close(ctx context.Context) {
	s.conn.Close(ctx)
}

// EnsureVideoMetadata registers the video in the database. If it exists, it updates the timestamp
// and drops the frames of the previous scan so a re-scan never duplicates rows.
func (s *Store) EnsureVideoMetadata(ctx context.Context, videoID, path string, fps float64) error {
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "DELETE FROM frame_regions WHERE video_id = $1", videoID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, "DELETE FROM frames WHERE video_id = $1", videoID); err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO video_metadata (id, path, fps, indexed_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (id) DO UPDATE SET indexed_at = NOW(), path = EXCLUDED.path, fps = EXCLUDED.fps
	`, videoID, path, fps)
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// InsertFrame stores one keyframe outcome and bulk-copies its regions.
func (s *Store) InsertFrame(ctx context.Context, videoID string, f FrameRecord) error {
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO frames (video_id, frame_index, status, detail)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (video_id, frame_index) DO UPDATE SET status = EXCLUDED.status, detail = EXCLUDED.detail
	`, videoID, f.Index, f.Status, f.Detail)
	if err != nil {
		return err
	}

	if len(f.Regions) > 0 {
		rows := make([][]any, 0, len(f.Regions))
		for _, r := range f.Regions {
			kps := r.Keypoints
			if kps == nil {
				kps = []pose.Keypoint{}
			}
			rows = append(rows, []any{videoID, f.Index, r.Label, r.X, r.Y, r.Width, r.Height, kps})
		}
		_, err = tx.CopyFrom(ctx,
			pgx.Identifier{"frame_regions"},
			[]string{"video_id", "frame_index", "label", "x", "y", "width", "height", "keypoints"},
			pgx.CopyFromRows(rows),
		)
		if err != nil {
			return fmt.Errorf("copy regions for frame %d: %w", f.Index, err)
		}
	}

	return tx.Commit(ctx)
}

// GetFrameRegions returns the stored regions of a video in frame then insertion order.
// A negative frame returns every frame.
func (s *Store) GetFrameRegions(ctx context.Context, videoID string, frame int) ([]StoredRegion, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT frame_index, label, x, y, width, height, keypoints
		FROM frame_regions
		WHERE video_id = $1 AND ($2 < 0 OR frame_index = $2)
		ORDER BY frame_index, id
	`, videoID, frame)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StoredRegion
	for rows.Next() {
		var r StoredRegion
		if err := rows.Scan(&r.FrameIndex, &r.Label, &r.X, &r.Y, &r.Width, &r.Height, &r.Keypoints); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListFrames returns the outcome of every stored keyframe of a video in frame order.
func (s *Store) ListFrames(ctx context.Context, videoID string) ([]FrameStatus, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT frame_index, status, detail
		FROM frames
		WHERE video_id = $1
		ORDER BY frame_index
	`, videoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FrameStatus
	for rows.Next() {
		var f FrameStatus
		if err := rows.Scan(&f.Index, &f.Status, &f.Detail); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// GetVideoInfo returns the metadata of a scanned video and a count of frames per status.
func (s *Store) GetVideoInfo(ctx context.Context, videoID string) (VideoInfo, error) {
	info := VideoInfo{ID: videoID, Frames: make(map[string]int)}
	err := s.conn.QueryRow(ctx, "SELECT path, fps, indexed_at FROM video_metadata WHERE id = $1", videoID).
		Scan(&info.Path, &info.FPS, &info.IndexedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return VideoInfo{}, fmt.Errorf("video %s: %w", videoID, ErrNotFound)
	}
	if err != nil {
		return VideoInfo{}, err
	}

	rows, err := s.conn.Query(ctx, "SELECT status, COUNT(*) FROM frames WHERE video_id = $1 GROUP BY status", videoID)
	if err != nil {
		return VideoInfo{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return VideoInfo{}, err
		}
		info.Frames[status] = n
	}
	return info, rows.Err()
}

// CreateCorpse registers a recording and its base images, returning the new id.
func (s *Store) CreateCorpse(ctx context.Context, path string, baseImages []string) (int64, error) {
	if baseImages == nil {
		baseImages = []string{}
	}
	var id int64
	err := s.conn.QueryRow(ctx,
		"INSERT INTO corpses (path, base_images) VALUES ($1, $2) RETURNING id",
		path, baseImages,
	).Scan(&id)
	return id, err
}

// ListCorpses returns all corpses, oldest first.
func (s *Store) ListCorpses(ctx context.Context) ([]Corpse, error) {
	rows, err := s.conn.Query(ctx, "SELECT id, path, base_images, created_at, updated_at FROM corpses ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Corpse
	for rows.Next() {
		var c Corpse
		if err := rows.Scan(&c.ID, &c.Path, &c.BaseImages, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetCorpse fetches a single corpse by id.
func (s *Store) GetCorpse(ctx context.Context, id int64) (Corpse, error) {
	var c Corpse
	err := s.conn.QueryRow(ctx,
		"SELECT id, path, base_images, created_at, updated_at FROM corpses WHERE id = $1", id,
	).Scan(&c.ID, &c.Path, &c.BaseImages, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Corpse{}, fmt.Errorf("corpse %d: %w", id, ErrNotFound)
	}
	return c, err
}

// DeleteCorpse removes a corpse by id.
func (s *Store) DeleteCorpse(ctx context.Context, id int64) error {
	tag, err := s.conn.Exec(ctx, "DELETE FROM corpses WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("corpse %d: %w", id, ErrNotFound)
	}
	return nil
}

// Reset drops all application tables to clear the database state.
// This is useful for development to force a schema refresh without migrations.
func (s *Store) Reset(ctx context.Context) error {
	_, err := s.conn.Exec(ctx, `
		DROP TABLE IF EXISTS frame_regions CASCADE;
		DROP TABLE IF EXISTS frames CASCADE;
		DROP TABLE IF EXISTS video_metadata CASCADE;
		DROP TABLE IF EXISTS corpses CASCADE;
	`)
	return err
}
