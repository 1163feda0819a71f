package state

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"  // Postgres driver
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/maine/youtube_blog_worker/internal/video"
)

// Время хранится как unix-микросекунды (BIGINT): одинаково в SQLite и Postgres.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS history_meta (
		id INTEGER PRIMARY KEY,
		version BIGINT NOT NULL,
		updated_at BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS used_items (
		id TEXT PRIMARY KEY,
		niche TEXT NOT NULL,
		tier TEXT NOT NULL,
		first_used BIGINT NOT NULL,
		last_updated BIGINT NOT NULL,
		score DOUBLE PRECISION NOT NULL DEFAULT 0,
		post_id TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_used_items_niche ON used_items(niche)`,
	`CREATE TABLE IF NOT EXISTS niche_runs (
		niche TEXT PRIMARY KEY,
		last_run BIGINT NOT NULL
	)`,
	`INSERT INTO history_meta (id, version, updated_at) VALUES (1, 0, 0) ON CONFLICT (id) DO NOTHING`,
}

// SQLBackend хранит историю в SQLite или Postgres.
type SQLBackend struct {
	db    *sqlx.DB
	bind  int
	clock func() time.Time
}

var _ Backend = (*SQLBackend)(nil)

type usedRow struct {
	ID          string  `db:"id"`
	Niche       string  `db:"niche"`
	Tier        string  `db:"tier"`
	FirstUsed   int64   `db:"first_used"`
	LastUpdated int64   `db:"last_updated"`
	Score       float64 `db:"score"`
	PostID      string  `db:"post_id"`
}

type nicheRow struct {
	Niche   string `db:"niche"`
	LastRun int64  `db:"last_run"`
}

type metaRow struct {
	Version   int64 `db:"version"`
	UpdatedAt int64 `db:"updated_at"`
}

// NewSQLiteBackend открывает (или создаёт) файл SQLite и применяет схему.
func NewSQLiteBackend(ctx context.Context, path string, clock func() time.Time) (*SQLBackend, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Одна запись за раз: SQLite сериализует писателей
	db.SetMaxOpenConns(1)
	return newSQLBackend(ctx, db, sqlx.QUESTION, clock)
}

// NewPostgresBackend подключается к Postgres по DSN и применяет схему.
func NewPostgresBackend(ctx context.Context, dsn string, clock func() time.Time) (*SQLBackend, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return newSQLBackend(ctx, db, sqlx.DOLLAR, clock)
}

func newSQLBackend(ctx context.Context, db *sqlx.DB, bind int, clock func() time.Time) (*SQLBackend, error) {
	if clock == nil {
		clock = time.Now
	}
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate history schema: %w", err)
		}
	}
	return &SQLBackend{db: db, bind: bind, clock: clock}, nil
}

// Close закрывает соединение.
func (b *SQLBackend) Close() error {
	return b.db.Close()
}

func (b *SQLBackend) q(query string) string {
	return sqlx.Rebind(b.bind, query)
}

// Load реализует Backend.
func (b *SQLBackend) Load(ctx context.Context) (video.History, error) {
	history := emptyHistory()

	var meta metaRow
	if err := b.db.GetContext(ctx, &meta, `SELECT version, updated_at FROM history_meta WHERE id = 1`); err != nil {
		return video.History{}, fmt.Errorf("load history version: %w", err)
	}
	history.Version = meta.Version
	if meta.UpdatedAt > 0 {
		history.UpdatedAt = time.UnixMicro(meta.UpdatedAt).UTC()
	}

	var rows []usedRow
	if err := b.db.SelectContext(ctx, &rows, `SELECT id, niche, tier, first_used, last_updated, score, post_id FROM used_items`); err != nil {
		return video.History{}, fmt.Errorf("load used items: %w", err)
	}
	for _, r := range rows {
		history.Items[r.ID] = video.UsedItemRecord{
			ID:          r.ID,
			Niche:       r.Niche,
			Tier:        r.Tier,
			FirstUsed:   time.UnixMicro(r.FirstUsed).UTC(),
			LastUpdated: time.UnixMicro(r.LastUpdated).UTC(),
			Score:       r.Score,
			PostID:      r.PostID,
		}
	}

	var runs []nicheRow
	if err := b.db.SelectContext(ctx, &runs, `SELECT niche, last_run FROM niche_runs`); err != nil {
		return video.History{}, fmt.Errorf("load niche runs: %w", err)
	}
	for _, r := range runs {
		history.NicheRuns[r.Niche] = time.UnixMicro(r.LastRun).UTC()
	}
	return history, nil
}

// Apply реализует Backend. Версия увеличивается условным UPDATE в той же транзакции,
// что и изменения, поэтому параллельный запуск получит ErrVersionConflict.
func (b *SQLBackend) Apply(ctx context.Context, expectedVersion int64, diff Diff) (int64, error) {
	tx, err := b.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin history tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		b.q(`UPDATE history_meta SET version = version + 1, updated_at = ? WHERE id = 1 AND version = ?`),
		b.clock().UnixMicro(), expectedVersion)
	if err != nil {
		return 0, fmt.Errorf("bump history version: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("bump history version: %w", err)
	}
	if n == 0 {
		return 0, fmt.Errorf("%w: expected version %d", ErrVersionConflict, expectedVersion)
	}

	if len(diff.Deletes) > 0 {
		query, args, err := sqlx.In(`DELETE FROM used_items WHERE id IN (?)`, diff.Deletes)
		if err != nil {
			return 0, err
		}
		if _, err := tx.ExecContext(ctx, b.q(query), args...); err != nil {
			return 0, fmt.Errorf("delete used items: %w", err)
		}
	}

	upsert := b.q(`
INSERT INTO used_items (id, niche, tier, first_used, last_updated, score, post_id)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
 niche = EXCLUDED.niche,
 tier = EXCLUDED.tier,
 first_used = CASE WHEN used_items.first_used < EXCLUDED.first_used THEN used_items.first_used ELSE EXCLUDED.first_used END,
 last_updated = EXCLUDED.last_updated,
 score = EXCLUDED.score,
 post_id = EXCLUDED.post_id`)
	for _, rec := range diff.Upserts {
		if _, err := tx.ExecContext(ctx, upsert,
			rec.ID, rec.Niche, rec.Tier,
			rec.FirstUsed.UnixMicro(), rec.LastUpdated.UnixMicro(),
			rec.Score, rec.PostID,
		); err != nil {
			return 0, fmt.Errorf("upsert used item id=%s: %w", rec.ID, err)
		}
	}

	runUpsert := b.q(`
INSERT INTO niche_runs (niche, last_run) VALUES (?, ?)
ON CONFLICT (niche) DO UPDATE SET
 last_run = CASE WHEN niche_runs.last_run > EXCLUDED.last_run THEN niche_runs.last_run ELSE EXCLUDED.last_run END`)
	for niche, at := range diff.NicheRuns {
		if _, err := tx.ExecContext(ctx, runUpsert, niche, at.UnixMicro()); err != nil {
			return 0, fmt.Errorf("upsert niche run %s: %w", niche, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit history tx: %w", err)
	}
	return expectedVersion + 1, nil
}
