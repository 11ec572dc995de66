// Package session implements SQLite-backed session storage and the
// request-validation protocol.
//
// A session passes validation only when its token resolves to an active
// user, its absolute expiry has not passed, and it has seen activity
// inside the inactivity window. Validation never deletes rows; expired
// and inactive rows are reclaimed by CleanupExpired, run out of band
// (cmd/cero-maint).
package session

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cero/internal/httpd"
)

// CookieName is the session cookie, used both when the login handler
// writes it and when the connection handler reads it back. The two
// paths must agree or no session is ever found.
const CookieName = "session"

const (
	// DefaultExpiry is the absolute session lifetime.
	DefaultExpiry = 7 * 24 * time.Hour
	// DefaultInactivity is the sliding inactivity window, enforced
	// independently of the absolute expiry.
	DefaultInactivity = 24 * time.Hour
)

// ErrNotFound is returned when a token does not resolve to a session.
var ErrNotFound = errors.New("session: not found")

// Session is one stored session row.
type Session struct {
	ID             int
	UserID         int
	Token          string
	CreatedAt      time.Time
	ExpiresAt      time.Time
	LastActivityAt time.Time
	IPAddress      string
	UserAgent      string
}

// Store manages session rows and implements httpd.SessionValidator.
type Store struct {
	DB         *sql.DB
	Expiry     time.Duration
	Inactivity time.Duration
	Logger     *slog.Logger

	// Now is the clock used for expiry checks; tests override it.
	Now func() time.Time
}

func NewStore(d *sql.DB, logger *slog.Logger) *Store {
	return &Store{
		DB:         d,
		Expiry:     DefaultExpiry,
		Inactivity: DefaultInactivity,
		Logger:     logger,
		Now:        time.Now,
	}
}

// Create inserts a new session for the user and returns its token,
// a 64-character random hex string.
func (s *Store) Create(userID int, ipAddress, userAgent string) (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("session token: %w", err)
	}
	token := hex.EncodeToString(raw)

	now := s.Now().Unix()
	expiresAt := now + int64(s.Expiry/time.Second)

	_, err := s.DB.Exec(
		`INSERT INTO sessions (user_id, token, created_at, expires_at, last_activity_at, ip_address, user_agent)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		userID, token, now, expiresAt, now, ipAddress, userAgent,
	)
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}

	s.Logger.Info("session created", "user_id", userID)
	return token, nil
}

// Validate resolves the token, applies both expiry policies, and on
// success populates the request identity fields and touches the
// session. A failed validation has no side effects.
func (s *Store) Validate(token string, req *httpd.Request) bool {
	if token == "" || req == nil {
		return false
	}

	row := s.DB.QueryRow(
		`SELECT s.id, s.user_id, s.expires_at, s.last_activity_at, u.email, u.role, u.account_id
		 FROM sessions s
		 JOIN users u ON s.user_id = u.id
		 WHERE s.token = ? AND u.is_active = 1`,
		token,
	)

	var (
		sessionID      int
		userID         int
		expiresAt      int64
		lastActivityAt int64
		email          string
		role           string
		accountID      int
	)
	if err := row.Scan(&sessionID, &userID, &expiresAt, &lastActivityAt, &email, &role, &accountID); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.Logger.Error("session lookup failed", "err", err)
		}
		return false
	}

	now := s.Now().Unix()
	if now > expiresAt {
		s.Logger.Info("session expired", "session_id", sessionID)
		return false
	}
	if now-lastActivityAt > int64(s.Inactivity/time.Second) {
		s.Logger.Info("session inactive timeout", "session_id", sessionID)
		return false
	}

	req.UserID = userID
	req.AccountID = accountID
	req.UserEmail = email
	req.UserRole = role
	req.Authenticated = true

	if err := s.Touch(token); err != nil {
		s.Logger.Error("session touch failed", "session_id", sessionID, "err", err)
	}

	s.Logger.Debug("session validated", "user_id", userID, "email", email)
	return true
}

// Touch updates the session's last-activity timestamp to now.
func (s *Store) Touch(token string) error {
	_, err := s.DB.Exec(
		`UPDATE sessions SET last_activity_at = ? WHERE token = ?`,
		s.Now().Unix(), token,
	)
	return err
}

// Delete removes the session row (logout).
func (s *Store) Delete(token string) error {
	_, err := s.DB.Exec(`DELETE FROM sessions WHERE token = ?`, token)
	return err
}

// CleanupExpired deletes sessions past their absolute expiry or outside
// the inactivity window, returning the number of rows removed.
func (s *Store) CleanupExpired() (int64, error) {
	now := s.Now().Unix()
	inactivityCutoff := now - int64(s.Inactivity/time.Second)

	res, err := s.DB.Exec(
		`DELETE FROM sessions WHERE expires_at < ? OR last_activity_at < ?`,
		now, inactivityCutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("cleanup sessions: %w", err)
	}
	deleted, _ := res.RowsAffected()
	if deleted > 0 {
		s.Logger.Info("cleaned up expired sessions", "count", deleted)
	}
	return deleted, nil
}

// GetByToken loads a session row without validating it.
func (s *Store) GetByToken(token string) (*Session, error) {
	row := s.DB.QueryRow(
		`SELECT id, user_id, token, created_at, expires_at, last_activity_at, ip_address, user_agent
		 FROM sessions WHERE token = ?`,
		token,
	)

	var sess Session
	var createdAt, expiresAt, lastActivityAt int64
	err := row.Scan(&sess.ID, &sess.UserID, &sess.Token, &createdAt, &expiresAt, &lastActivityAt, &sess.IPAddress, &sess.UserAgent)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	sess.CreatedAt = time.Unix(createdAt, 0)
	sess.ExpiresAt = time.Unix(expiresAt, 0)
	sess.LastActivityAt = time.Unix(lastActivityAt, 0)
	return &sess, nil
}
