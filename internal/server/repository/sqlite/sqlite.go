// Package sqlite is the default storage backend. Users and documents live in
// two tables; the (owner, id) primary key makes identifier collisions and
// duplicate registrations detectable at insert time.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/DidNoDB/didnodb/internal/server/models"
)

type Repository struct {
	db *sql.DB
}

func New(dsn string) (*Repository, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			username TEXT PRIMARY KEY,
			password_hash TEXT NOT NULL,
			role TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		);
		CREATE TABLE IF NOT EXISTS documents (
			owner TEXT NOT NULL,
			id TEXT NOT NULL,
			payload BLOB NOT NULL,
			created_at TIMESTAMP NOT NULL,
			PRIMARY KEY(owner, id),
			FOREIGN KEY(owner) REFERENCES users(username)
		);
	`); err != nil {
		return nil, err
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error { return r.db.Close() }

func isConstraintViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY ||
		se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}

// Users

func (r *Repository) CreateUser(ctx context.Context, user models.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users(username, password_hash, role, created_at) VALUES(?,?,?,?)`,
		user.Username, user.PasswordHash, string(user.Role), user.CreatedAt.UTC())
	if isConstraintViolation(err) {
		return models.ErrAlreadyExists
	}
	return err
}

func (r *Repository) GetUser(ctx context.Context, username string) (models.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT username, password_hash, role, created_at FROM users WHERE username = ?`, username)
	var u models.User
	var role string
	if err := row.Scan(&u.Username, &u.PasswordHash, &role, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, models.ErrNotFound
		}
		return models.User{}, err
	}
	u.Role = models.Role(role)
	return u, nil
}

func (r *Repository) ListUsers(ctx context.Context) ([]models.User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT username, role, created_at FROM users ORDER BY username`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []models.User{}
	for rows.Next() {
		var u models.User
		var role string
		if err := rows.Scan(&u.Username, &role, &u.CreatedAt); err != nil {
			return nil, err
		}
		u.Role = models.Role(role)
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *Repository) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	return n, err
}

// Documents

// EnsureNamespace is a no-op here: a namespace exists implicitly as the set
// of rows sharing an owner.
func (r *Repository) EnsureNamespace(ctx context.Context, owner string) error {
	return nil
}

func (r *Repository) SaveDocument(ctx context.Context, owner, id string, payload []byte) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO documents(owner, id, payload, created_at) VALUES(?,?,?,?)`,
		owner, id, payload, time.Now().UTC())
	if isConstraintViolation(err) {
		return models.ErrIDCollision
	}
	return err
}

func (r *Repository) GetDocument(ctx context.Context, owner, id string) ([]byte, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT payload FROM documents WHERE owner = ? AND id = ?`, owner, id)
	var payload []byte
	if err := row.Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, err
	}
	return payload, nil
}

func (r *Repository) ListDocuments(ctx context.Context, owner string) (map[string]json.RawMessage, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, payload FROM documents WHERE owner = ?`, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]json.RawMessage{}
	for rows.Next() {
		var id string
		var payload []byte
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, err
		}
		out[id] = payload
	}
	return out, rows.Err()
}

func (r *Repository) DeleteDocument(ctx context.Context, owner, id string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM documents WHERE owner = ? AND id = ?`, owner, id)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *Repository) CountDocuments(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n)
	return n, err
}
