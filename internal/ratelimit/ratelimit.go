// Package ratelimit implements a counting fixed-window limiter backed
// by the rate_limits table.
//
// Each allowed request inserts a timestamp row; a check counts rows for
// the identifier newer than now minus the window. This is deliberately
// not a token bucket: cost grows with requests inside the window, and
// Cleanup must run periodically (cmd/cero-maint) so storage stays
// bounded.
package ratelimit

import (
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"time"
)

const (
	// DefaultLimit is the maximum number of requests per window.
	DefaultLimit = 60
	// DefaultWindow is the trailing window length.
	DefaultWindow = 60 * time.Second
)

// Limiter checks and records requests per opaque identifier. IP-based
// and user-based checks share the mechanism and threshold; the
// identifiers keep them independent.
type Limiter struct {
	DB     *sql.DB
	Limit  int
	Window time.Duration
	Logger *slog.Logger

	// Now is the clock; tests override it.
	Now func() time.Time
}

func New(d *sql.DB, logger *slog.Logger) *Limiter {
	return &Limiter{
		DB:     d,
		Limit:  DefaultLimit,
		Window: DefaultWindow,
		Logger: logger,
		Now:    time.Now,
	}
}

// Check reports whether the identifier may proceed. When at or over the
// limit it returns false and records nothing; otherwise it records a new
// timestamp row and returns true.
func (l *Limiter) Check(identifier string) (bool, error) {
	now := l.Now().Unix()
	windowStart := now - int64(l.Window/time.Second)

	var count int
	err := l.DB.QueryRow(
		`SELECT COUNT(*) FROM rate_limits WHERE identifier = ? AND timestamp > ?`,
		identifier, windowStart,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("rate limit check: %w", err)
	}

	if count >= l.Limit {
		l.Logger.Warn("rate limit exceeded", "identifier", identifier, "requests", count)
		return false, nil
	}

	if _, err := l.DB.Exec(
		`INSERT INTO rate_limits (identifier, timestamp) VALUES (?, ?)`,
		identifier, now,
	); err != nil {
		return false, fmt.Errorf("rate limit record: %w", err)
	}
	return true, nil
}

// CheckIP applies the limiter to a client IP address. It satisfies
// httpd.Limiter.
func (l *Limiter) CheckIP(ip string) (bool, error) {
	return l.Check(ip)
}

// CheckUser applies the limiter to a user id, independent of any
// IP-based check on the same request.
func (l *Limiter) CheckUser(userID int) (bool, error) {
	return l.Check("user:" + strconv.Itoa(userID))
}

// Cleanup deletes rows older than the window, returning the count.
func (l *Limiter) Cleanup() (int64, error) {
	cutoff := l.Now().Unix() - int64(l.Window/time.Second)
	res, err := l.DB.Exec(`DELETE FROM rate_limits WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("rate limit cleanup: %w", err)
	}
	deleted, _ := res.RowsAffected()
	if deleted > 0 {
		l.Logger.Debug("cleaned up rate limit rows", "count", deleted)
	}
	return deleted, nil
}

// Reset clears all rows for one identifier.
func (l *Limiter) Reset(identifier string) error {
	if _, err := l.DB.Exec(`DELETE FROM rate_limits WHERE identifier = ?`, identifier); err != nil {
		return fmt.Errorf("rate limit reset: %w", err)
	}
	l.Logger.Info("rate limit reset", "identifier", identifier)
	return nil
}
