package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/codebuildervaibhav/hillmyna/internal/types"
)

var (
	// ErrUserNotFound is returned when no user matches the lookup.
	ErrUserNotFound = errors.New("user not found")

	// ErrUserExists is returned when the username or Azure id is taken.
	ErrUserExists = errors.New("user already exists")
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	azure_id TEXT PRIMARY KEY,
	username TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL DEFAULT '',
	surname TEXT NOT NULL DEFAULT '',
	enabled INTEGER NOT NULL DEFAULT 1,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS attempts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	challenge_id TEXT NOT NULL,
	username TEXT NOT NULL DEFAULT '',
	identified_id TEXT NOT NULL DEFAULT '',
	confidence TEXT NOT NULL DEFAULT '',
	transcript TEXT NOT NULL DEFAULT '',
	words_matched INTEGER NOT NULL DEFAULT 0,
	passed INTEGER NOT NULL DEFAULT 0,
	reason TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_attempts_created_at ON attempts(created_at);
CREATE INDEX IF NOT EXISTS idx_attempts_username ON attempts(username);
`

// DB handles the SQLite database holding users and login attempts.
type DB struct {
	db *sql.DB
}

// NewDB opens (creating if needed) the database at dbPath. Use ":memory:"
// for a throwaway database.
func NewDB(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// a single connection keeps ":memory:" databases alive and serializes writers
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return &DB{db: db}, nil
}

// Ping checks the database connection.
func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// Close closes the database connection
func (d *DB) Close() error {
	return d.db.Close()
}

// AddUser inserts u. CreatedAt is set when zero.
func (d *DB) AddUser(ctx context.Context, u *types.User) error {
	if u.AzureID == "" || u.Username == "" {
		return errors.New("user needs an azure id and a username")
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}

	_, err := d.db.ExecContext(ctx, `
	INSERT INTO users (azure_id, username, name, surname, enabled, created_at)
	VALUES (?, ?, ?, ?, ?, ?)`,
		u.AzureID, u.Username, u.Name, u.Surname, u.Enabled, u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrUserExists, u.Username)
		}
		return fmt.Errorf("failed to add user: %w", err)
	}
	return nil
}

// RemoveUser deletes the user owning azureID.
func (d *DB) RemoveUser(ctx context.Context, azureID string) error {
	res, err := d.db.ExecContext(ctx, `DELETE FROM users WHERE azure_id = ?`, azureID)
	if err != nil {
		return fmt.Errorf("failed to remove user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// RemoveAllUsers deletes every user and returns how many were removed.
func (d *DB) RemoveAllUsers(ctx context.Context) (int64, error) {
	res, err := d.db.ExecContext(ctx, `DELETE FROM users`)
	if err != nil {
		return 0, fmt.Errorf("failed to remove users: %w", err)
	}
	return res.RowsAffected()
}

const userColumns = `azure_id, username, name, surname, enabled, created_at`

// UserByAzureID looks a user up by profile id.
func (d *DB) UserByAzureID(ctx context.Context, azureID string) (*types.User, error) {
	row := d.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE azure_id = ?`, azureID)
	return scanUser(row)
}

// UserByUsername looks a user up by username.
func (d *DB) UserByUsername(ctx context.Context, username string) (*types.User, error) {
	row := d.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username)
	return scanUser(row)
}

// ListUsers returns all users ordered by username. With enabledOnly set,
// disabled users are left out.
func (d *DB) ListUsers(ctx context.Context, enabledOnly bool) ([]*types.User, error) {
	query := `SELECT ` + userColumns + ` FROM users`
	if enabledOnly {
		query += ` WHERE enabled = 1`
	}
	query += ` ORDER BY username`

	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := []*types.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// SetUserEnabled enables or disables a user.
func (d *DB) SetUserEnabled(ctx context.Context, username string, enabled bool) error {
	res, err := d.db.ExecContext(ctx, `UPDATE users SET enabled = ? WHERE username = ?`, enabled, username)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	return nil
}

type importedUser struct {
	AzureID  string `json:"azure_id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Surname  string `json:"surname"`
	Status   *bool  `json:"status"`
}

// ImportUsersJSON loads a JSON array of users ({azure_id, username, name,
// surname, status}). Users already present are skipped. It returns the
// number of users added.
func (d *DB) ImportUsersJSON(ctx context.Context, path string) (int, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	if !info.Mode().IsRegular() {
		return 0, fmt.Errorf("%s must be a regular file", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	var list []importedUser
	if err := json.Unmarshal(data, &list); err != nil {
		return 0, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	added := 0
	for _, iu := range list {
		u := &types.User{
			AzureID:  iu.AzureID,
			Username: iu.Username,
			Name:     iu.Name,
			Surname:  iu.Surname,
			Enabled:  iu.Status == nil || *iu.Status,
		}
		switch err := d.AddUser(ctx, u); {
		case errors.Is(err, ErrUserExists):
			continue
		case err != nil:
			return added, err
		}
		added++
	}
	return added, nil
}

// SaveAttempt records a login attempt and sets its id.
func (d *DB) SaveAttempt(ctx context.Context, a *types.Attempt) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	res, err := d.db.ExecContext(ctx, `
	INSERT INTO attempts (challenge_id, username, identified_id, confidence, transcript, words_matched, passed, reason, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ChallengeID, a.Username, a.IdentifiedID, a.Confidence, a.Transcript,
		a.WordsMatched, a.Passed, a.Reason, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save attempt: %w", err)
	}
	a.ID, err = res.LastInsertId()
	return err
}

// ListAttempts returns the most recent attempts first.
func (d *DB) ListAttempts(ctx context.Context, limit int) ([]*types.Attempt, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := d.db.QueryContext(ctx, `
	SELECT id, challenge_id, username, identified_id, confidence, transcript, words_matched, passed, reason, created_at
	FROM attempts ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}
	defer rows.Close()

	attempts := []*types.Attempt{}
	for rows.Next() {
		a := &types.Attempt{}
		if err := rows.Scan(&a.ID, &a.ChallengeID, &a.Username, &a.IdentifiedID, &a.Confidence,
			&a.Transcript, &a.WordsMatched, &a.Passed, &a.Reason, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to read attempt: %w", err)
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(s scanner) (*types.User, error) {
	u := &types.User{}
	err := s.Scan(&u.AzureID, &u.Username, &u.Name, &u.Surname, &u.Enabled, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read user: %w", err)
	}
	return u, nil
}

func isUniqueViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "PRIMARY KEY constraint failed")
}
