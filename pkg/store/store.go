// Package store persists aggregated records and resolved films in SQLite.
//
// A stored record can be reloaded without touching the network, and the
// film table doubles as a persistent layer under the in-memory film cache
// (see FilmLoader).
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/Sternrassler/letterboxd-client/pkg/entity"
	"github.com/Sternrassler/letterboxd-client/pkg/model"
	"github.com/Sternrassler/letterboxd-client/pkg/pagination"
	"github.com/Sternrassler/letterboxd-client/pkg/record"

	_ "modernc.org/sqlite"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrNotFound is returned when a film or record is not stored.
var ErrNotFound = errors.New("not found in store")

const dateLayout = "2006-01-02"

// Store manages SQLite persistence.
type Store struct {
	db *sql.DB
}

// RecordInfo summarizes one stored record.
type RecordInfo struct {
	Owner         model.ID
	Kind          pagination.Kind
	Title         string
	DeclaredTotal int
	Entries       int
	SavedAt       time.Time
}

// Open opens or creates the database at path and migrates the schema.
// Use ":memory:" for a private in-memory database.
func Open(path string) (*Store, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(60000)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)
	if path == ":memory:" {
		// Every connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS films (
		slug       TEXT PRIMARY KEY,
		title      TEXT NOT NULL,
		year       INTEGER NOT NULL DEFAULT 0,
		data       TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS records (
		owner          TEXT NOT NULL,
		kind           TEXT NOT NULL,
		title          TEXT NOT NULL DEFAULT '',
		declared_total INTEGER NOT NULL,
		pages          INTEGER NOT NULL,
		numbered       INTEGER NOT NULL DEFAULT 0,
		drift          INTEGER NOT NULL DEFAULT 0,
		saved_at       TEXT NOT NULL,
		PRIMARY KEY (owner, kind)
	);

	CREATE TABLE IF NOT EXISTS entries (
		owner        TEXT NOT NULL,
		kind         TEXT NOT NULL,
		position     INTEGER NOT NULL,
		film         TEXT NOT NULL,
		watched_date TEXT NOT NULL DEFAULT '',
		rating       REAL NOT NULL DEFAULT 0,
		liked        INTEGER NOT NULL DEFAULT 0,
		rewatch      INTEGER NOT NULL DEFAULT 0,
		review       TEXT NOT NULL DEFAULT '',
		review_url   TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (owner, kind, position),
		FOREIGN KEY (owner, kind) REFERENCES records(owner, kind) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_entries_film ON entries(film);
	`
	_, err := s.db.Exec(schema)
	return err
}

// retryOnContention retries transient SQLite errors of write operations.
func retryOnContention(ctx context.Context, fn func() error) error {
	return retryOp(ctx, defaultRetryConfig, fn)
}

// ---------------------------------------------------------------------------
// Films
// ---------------------------------------------------------------------------

// SaveFilm inserts or replaces a film.
func (s *Store) SaveFilm(ctx context.Context, film model.Film) error {
	data, err := json.Marshal(film)
	if err != nil {
		return fmt.Errorf("encode film %s: %w", film.Slug, err)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	return retryOnContention(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO films (slug, title, year, data, updated_at) VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT(slug) DO UPDATE SET
				title = excluded.title, year = excluded.year,
				data = excluded.data, updated_at = excluded.updated_at`,
			string(film.Slug), film.Title, film.Year, string(data), now,
		)
		return err
	})
}

// LoadFilm returns a stored film.
func (s *Store) LoadFilm(ctx context.Context, slug model.ID) (model.Film, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM films WHERE slug = ?`, string(slug)).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Film{}, fmt.Errorf("film %s: %w", slug, ErrNotFound)
	}
	if err != nil {
		return model.Film{}, err
	}

	var film model.Film
	if err := json.Unmarshal([]byte(data), &film); err != nil {
		return model.Film{}, fmt.Errorf("decode film %s: %w", slug, err)
	}
	return film, nil
}

// FilmLoader serves films from the store and falls back to next, saving
// what next returns.
func (s *Store) FilmLoader(next entity.Loader[model.Film]) entity.Loader[model.Film] {
	return func(ctx context.Context, slug model.ID) (model.Film, error) {
		film, err := s.LoadFilm(ctx, slug)
		if err == nil {
			return film, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return model.Film{}, err
		}

		film, err = next(ctx, slug)
		if err != nil {
			return model.Film{}, err
		}
		if err := s.SaveFilm(ctx, film); err != nil {
			return model.Film{}, err
		}
		return film, nil
	}
}

// ---------------------------------------------------------------------------
// Records
// ---------------------------------------------------------------------------

// SaveRecord replaces the stored copy of rec. Films already resolved in rec
// are saved too.
func (s *Store) SaveRecord(ctx context.Context, rec *record.Record) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	err := retryOnContention(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM records WHERE owner = ? AND kind = ?`,
			string(rec.Owner), string(rec.Kind),
		); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO records (owner, kind, title, declared_total, pages, numbered, drift, saved_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			string(rec.Owner), string(rec.Kind), rec.Title, rec.DeclaredTotal, rec.Pages,
			boolInt(rec.Numbered()), rec.Drift(), now,
		); err != nil {
			return err
		}

		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO entries (owner, kind, position, film, watched_date, rating, liked, rewatch, review, review_url)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for i, e := range rec.Entries {
			if _, err := stmt.ExecContext(ctx,
				string(rec.Owner), string(rec.Kind), i, string(e.ID()),
				formatDate(e.WatchedDate), float64(e.Rating), boolInt(e.Liked), boolInt(e.Rewatch),
				e.Review, e.ReviewURL,
			); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
	if err != nil {
		return fmt.Errorf("save %s %s: %w", rec.Kind, rec.Owner, err)
	}

	for _, e := range rec.Entries {
		if film, ok := e.Film.Get(); ok {
			if err := s.SaveFilm(ctx, film); err != nil {
				return err
			}
		}
	}
	return nil
}

// LoadRecord rebuilds a stored record, linking films through refs. A nil
// refs leaves every film unresolved.
func (s *Store) LoadRecord(ctx context.Context, owner model.ID, kind pagination.Kind, refs record.Interner) (*record.Record, error) {
	res := &pagination.Result[record.Partial]{Subject: owner, Kind: kind}

	var numbered int
	err := s.db.QueryRowContext(ctx,
		`SELECT title, declared_total, pages, numbered, drift FROM records WHERE owner = ? AND kind = ?`,
		string(owner), string(kind),
	).Scan(&res.Title, &res.DeclaredTotal, &res.Pages, &numbered, &res.Drift)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s %s: %w", kind, owner, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	res.Numbered = numbered != 0

	if res.Items, err = s.LoadEntries(ctx, owner, kind); err != nil {
		return nil, err
	}
	return record.Build(res, refs), nil
}

// LoadEntries returns the stored entries of a record in order.
func (s *Store) LoadEntries(ctx context.Context, owner model.ID, kind pagination.Kind) ([]record.Partial, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT film, watched_date, rating, liked, rewatch, review, review_url
		 FROM entries WHERE owner = ? AND kind = ? ORDER BY position`,
		string(owner), string(kind),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []record.Partial
	for rows.Next() {
		var (
			p              record.Partial
			film, date     string
			rating         float64
			liked, rewatch int
		)
		if err := rows.Scan(&film, &date, &rating, &liked, &rewatch, &p.Review, &p.ReviewURL); err != nil {
			return nil, err
		}
		p.Film = model.ID(film)
		p.Rating = model.Rating(rating)
		p.Liked = liked != 0
		p.Rewatch = rewatch != 0
		if date != "" {
			if p.WatchedDate, err = time.Parse(dateLayout, date); err != nil {
				return nil, fmt.Errorf("parse watched date of %s: %w", film, err)
			}
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Records lists stored records ordered by owner and kind.
func (s *Store) Records(ctx context.Context) ([]RecordInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT r.owner, r.kind, r.title, r.declared_total, r.saved_at,
		        (SELECT COUNT(*) FROM entries e WHERE e.owner = r.owner AND e.kind = r.kind)
		 FROM records r ORDER BY r.owner, r.kind`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RecordInfo
	for rows.Next() {
		var (
			info        RecordInfo
			owner, kind string
			savedAt     string
		)
		if err := rows.Scan(&owner, &kind, &info.Title, &info.DeclaredTotal, &savedAt, &info.Entries); err != nil {
			return nil, err
		}
		info.Owner = model.ID(owner)
		info.Kind = pagination.Kind(kind)
		if info.SavedAt, err = time.Parse(time.RFC3339Nano, savedAt); err != nil {
			return nil, fmt.Errorf("parse saved_at for %s %s: %w", kind, owner, err)
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
