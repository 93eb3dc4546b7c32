package landmarks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/yyyoichi/warptps"
	_ "modernc.org/sqlite"
)

// Set is a named landmark list together with the kernel it was tuned for.
// A nil kernel parameter is not stored and defers to the caller's kernel.
type Set struct {
	Name           string
	KernelExponent *float64
	KernelScale    *float64
	Landmarks      []warptps.Landmark
	UpdatedAt      time.Time
}

// Options returns the kernel options of the stored parameters.
func (s *Set) Options() []warptps.Option {
	var opts []warptps.Option
	if s.KernelExponent != nil {
		opts = append(opts, warptps.WithKernelExponent(*s.KernelExponent))
	}
	if s.KernelScale != nil {
		opts = append(opts, warptps.WithKernelScale(*s.KernelScale))
	}
	return opts
}

// Transform builds a Transform holding the set. The stored kernel takes
// precedence over opts.
func (s *Set) Transform(opts ...warptps.Option) (*warptps.Transform, error) {
	opts = append(append(opts[:len(opts):len(opts)], s.Options()...), warptps.WithLandmarks(s.Landmarks))
	return warptps.New(opts...)
}

// NewSet captures the landmarks and kernel of t.
func NewSet(name string, t *warptps.Transform) *Set {
	exp, k := t.Kernel()
	return &Set{Name: name, KernelExponent: &exp, KernelScale: &k, Landmarks: t.Landmarks()}
}

// Summary describes a stored set without its landmarks.
type Summary struct {
	Name      string
	Count     int
	UpdatedAt time.Time
}

// Store keeps named landmark sets in SQLite.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Save inserts the set or replaces the landmarks of an existing set with
// the same name.
func (s *Store) Save(ctx context.Context, set *Set) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().Unix()
	var id int64
	err = tx.QueryRowContext(ctx, "SELECT id FROM landmark_sets WHERE name = ?", set.Name).Scan(&id)
	switch {
	case err == nil:
		if _, err := tx.ExecContext(ctx,
			"UPDATE landmark_sets SET kernel_exponent = ?, kernel_scale = ?, updated_at = ? WHERE id = ?",
			nullable(set.KernelExponent), nullable(set.KernelScale), now, id,
		); err != nil {
			return fmt.Errorf("failed to update landmark set: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM landmarks WHERE set_id = ?", id); err != nil {
			return fmt.Errorf("failed to clear landmarks: %w", err)
		}
	case errors.Is(err, sql.ErrNoRows):
		result, err := tx.ExecContext(ctx,
			"INSERT INTO landmark_sets (name, kernel_exponent, kernel_scale, updated_at) VALUES (?, ?, ?, ?)",
			set.Name, nullable(set.KernelExponent), nullable(set.KernelScale), now,
		)
		if err != nil {
			return fmt.Errorf("failed to insert landmark set: %w", err)
		}
		if id, err = result.LastInsertId(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("failed to query landmark set: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO landmarks (set_id, idx, source_x, source_y, source_z, dest_x, dest_y, dest_z) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
	)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()
	for i, l := range set.Landmarks {
		src, dst := l.Source.Array(), l.Destination.Array()
		if _, err := stmt.ExecContext(ctx, id, i, src[0], src[1], src[2], dst[0], dst[1], dst[2]); err != nil {
			return fmt.Errorf("failed to insert landmark %d: %w", i, err)
		}
	}
	return tx.Commit()
}

func nullable(x *float64) sql.NullFloat64 {
	if x == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *x, Valid: true}
}

// Load returns the named set or ErrNotFound.
func (s *Store) Load(ctx context.Context, name string) (*Set, error) {
	set := &Set{Name: name}
	var (
		id      int64
		exp, k  sql.NullFloat64
		updated int64
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT id, kernel_exponent, kernel_scale, updated_at FROM landmark_sets WHERE name = ?", name,
	).Scan(&id, &exp, &k, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query landmark set: %w", err)
	}
	if exp.Valid {
		set.KernelExponent = &exp.Float64
	}
	if k.Valid {
		set.KernelScale = &k.Float64
	}
	set.UpdatedAt = time.Unix(updated, 0)

	rows, err := s.db.QueryContext(ctx,
		"SELECT source_x, source_y, source_z, dest_x, dest_y, dest_z FROM landmarks WHERE set_id = ? ORDER BY idx", id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query landmarks: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var v [6]float64
		if err := rows.Scan(&v[0], &v[1], &v[2], &v[3], &v[4], &v[5]); err != nil {
			return nil, fmt.Errorf("failed to scan landmark: %w", err)
		}
		set.Landmarks = append(set.Landmarks, warptps.Landmark{
			Source:      warptps.Pt3(v[0], v[1], v[2]),
			Destination: warptps.Pt3(v[3], v[4], v[5]),
		})
	}
	return set, rows.Err()
}

// List returns every stored set ordered by name.
func (s *Store) List(ctx context.Context) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT s.name, COUNT(l.idx), s.updated_at
FROM landmark_sets s LEFT JOIN landmarks l ON l.set_id = s.id
GROUP BY s.id
ORDER BY s.name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list landmark sets: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var (
			sum     Summary
			updated int64
		)
		if err := rows.Scan(&sum.Name, &sum.Count, &updated); err != nil {
			return nil, fmt.Errorf("failed to scan landmark set: %w", err)
		}
		sum.UpdatedAt = time.Unix(updated, 0)
		out = append(out, sum)
	}
	return out, rows.Err()
}

// Delete removes the named set or returns ErrNotFound.
func (s *Store) Delete(ctx context.Context, name string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var id int64
	err = tx.QueryRowContext(ctx, "SELECT id FROM landmark_sets WHERE name = ?", name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	if err != nil {
		return fmt.Errorf("failed to query landmark set: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM landmarks WHERE set_id = ?", id); err != nil {
		return fmt.Errorf("failed to delete landmarks: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM landmark_sets WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete landmark set: %w", err)
	}
	return tx.Commit()
}
