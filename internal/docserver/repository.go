package docserver

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/five82/cubespace/internal/cube"
	"github.com/five82/cubespace/internal/docstore"
)

// ErrUnknownOwner is returned when a cube references an owner that does not
// exist.
var ErrUnknownOwner = errors.New("docserver: unknown owner")

// Repository persists sessions, owners, and cubes in SQLite.
type Repository struct {
	db  *sql.DB
	now func() time.Time
}

// OpenRepository opens or creates the database at path. ":memory:" keeps
// everything in memory.
func OpenRepository(path string) (*Repository, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// one connection keeps ":memory:" databases alive and serializes writers
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db, path); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repository{db: db, now: time.Now}, nil
}

// Close closes the database.
func (r *Repository) Close() error {
	return r.db.Close()
}

func initPragmas(db *sql.DB, path string) error {
	pragmas := []string{
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	if path != ":memory:" {
		pragmas = append(pragmas, "PRAGMA journal_mode=WAL;", "PRAGMA synchronous=NORMAL;")
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			token TEXT PRIMARY KEY,
			created_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS owners (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			profile_url TEXT NOT NULL DEFAULT '',
			avatar_url TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS cubes (
			id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL REFERENCES owners(id),
			color TEXT NOT NULL,
			drop_x REAL NOT NULL, drop_y REAL NOT NULL, drop_z REAL NOT NULL,
			final_x REAL NOT NULL, final_y REAL NOT NULL, final_z REAL NOT NULL,
			rot_x REAL, rot_y REAL, rot_z REAL, rot_w REAL,
			created_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS cubes_created_at ON cubes(created_at);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

// CreateSession issues a new anonymous session token.
func (r *Repository) CreateSession(ctx context.Context) (string, error) {
	token := uuid.NewString()
	_, err := r.db.ExecContext(ctx, `INSERT INTO sessions(token, created_at) VALUES(?, ?)`,
		token, formatTime(r.now()))
	if err != nil {
		return "", fmt.Errorf("insert session: %w", err)
	}
	return token, nil
}

// ValidSession reports whether token was issued by CreateSession.
func (r *Repository) ValidSession(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM sessions WHERE token = ?`, token).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("query session: %w", err)
	}
	return n > 0, nil
}

// CreateOwner stores an owner and returns the stored record.
func (r *Repository) CreateOwner(ctx context.Context, in docstore.OwnerInput) (cube.RemoteOwnerView, error) {
	o := cube.RemoteOwnerView{
		OwnerID:    uuid.Must(uuid.NewV7()).String(),
		Name:       in.Name,
		ProfileURL: in.ProfileURL,
		AvatarURL:  in.AvatarURL,
		CreatedAt:  r.now().UTC(),
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO owners(id, name, profile_url, avatar_url, created_at) VALUES(?, ?, ?, ?, ?)`,
		o.OwnerID, o.Name, o.ProfileURL, o.AvatarURL, formatTime(o.CreatedAt))
	if err != nil {
		return cube.RemoteOwnerView{}, fmt.Errorf("insert owner: %w", err)
	}
	return o, nil
}

// CreateCube stores a cube. The owner must already exist.
func (r *Repository) CreateCube(ctx context.Context, in docstore.CubeInput) (cube.RemoteCubeView, error) {
	var exists int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM owners WHERE id = ?`, in.OwnerID).Scan(&exists); err != nil {
		return cube.RemoteCubeView{}, fmt.Errorf("query owner: %w", err)
	}
	if exists == 0 {
		return cube.RemoteCubeView{}, ErrUnknownOwner
	}

	final := in.FinalPosition
	c := cube.RemoteCubeView{
		RemoteID:      uuid.Must(uuid.NewV7()).String(),
		OwnerID:       in.OwnerID,
		Color:         in.Color,
		DropPosition:  in.DropPosition,
		FinalPosition: &final,
		FinalRotation: in.FinalRotation,
		CreatedAt:     r.now().UTC(),
	}
	var rx, ry, rz, rw sql.NullFloat64
	if q := in.FinalRotation; q != nil {
		rx = sql.NullFloat64{Float64: q.X, Valid: true}
		ry = sql.NullFloat64{Float64: q.Y, Valid: true}
		rz = sql.NullFloat64{Float64: q.Z, Valid: true}
		rw = sql.NullFloat64{Float64: q.W, Valid: true}
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO cubes(
			id, owner_id, color,
			drop_x, drop_y, drop_z,
			final_x, final_y, final_z,
			rot_x, rot_y, rot_z, rot_w,
			created_at
		) VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.RemoteID, c.OwnerID, c.Color,
		in.DropPosition.X, in.DropPosition.Y, in.DropPosition.Z,
		final.X, final.Y, final.Z,
		rx, ry, rz, rw,
		formatTime(c.CreatedAt))
	if err != nil {
		return cube.RemoteCubeView{}, fmt.Errorf("insert cube: %w", err)
	}
	return c, nil
}

// ListCubes returns every cube, oldest first.
func (r *Repository) ListCubes(ctx context.Context) ([]cube.RemoteCubeView, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT
			id, owner_id, color,
			drop_x, drop_y, drop_z,
			final_x, final_y, final_z,
			rot_x, rot_y, rot_z, rot_w,
			created_at
		FROM cubes ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("query cubes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []cube.RemoteCubeView{}
	for rows.Next() {
		var (
			c              cube.RemoteCubeView
			final          cube.Vec3
			rx, ry, rz, rw sql.NullFloat64
			created        string
		)
		if err := rows.Scan(
			&c.RemoteID, &c.OwnerID, &c.Color,
			&c.DropPosition.X, &c.DropPosition.Y, &c.DropPosition.Z,
			&final.X, &final.Y, &final.Z,
			&rx, &ry, &rz, &rw,
			&created,
		); err != nil {
			return nil, fmt.Errorf("scan cube: %w", err)
		}
		c.FinalPosition = &final
		if rw.Valid {
			c.FinalRotation = &cube.Quat{X: rx.Float64, Y: ry.Float64, Z: rz.Float64, W: rw.Float64}
		}
		c.CreatedAt = parseTime(created)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cubes: %w", err)
	}
	return out, nil
}

// ListOwners returns every owner, oldest first.
func (r *Repository) ListOwners(ctx context.Context) ([]cube.RemoteOwnerView, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, profile_url, avatar_url, created_at FROM owners ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("query owners: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []cube.RemoteOwnerView{}
	for rows.Next() {
		var (
			o       cube.RemoteOwnerView
			created string
		)
		if err := rows.Scan(&o.OwnerID, &o.Name, &o.ProfileURL, &o.AvatarURL, &created); err != nil {
			return nil, fmt.Errorf("scan owner: %w", err)
		}
		o.CreatedAt = parseTime(created)
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate owners: %w", err)
	}
	return out, nil
}

// timeLayout is fixed width so text order matches time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
