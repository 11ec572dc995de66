// Package auth implements credential verification, account/user
// creation, and the login/logout route handlers.
package auth

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials covers unknown email, inactive user, and wrong
// password alike; callers must not distinguish them.
var ErrInvalidCredentials = errors.New("auth: invalid credentials")

// Service owns user accounts and wires session creation into login.
type Service struct {
	DB       *sql.DB
	Sessions SessionCreator
	Logger   *slog.Logger

	// BcryptCost lets tests drop to bcrypt.MinCost. Zero means default.
	BcryptCost int
}

// SessionCreator is the slice of the session store login needs.
type SessionCreator interface {
	Create(userID int, ipAddress, userAgent string) (string, error)
	Delete(token string) error
}

// HashPassword hashes a password with bcrypt at the given cost
// (0 means bcrypt.DefaultCost).
func HashPassword(password string, cost int) (string, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}

// VerifyPassword reports whether password matches the stored hash.
func VerifyPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// Authenticate verifies email+password against an active user and
// returns the user id.
func (s *Service) Authenticate(email, password string) (int, error) {
	row := s.DB.QueryRow(
		`SELECT id, password_hash, is_active FROM users WHERE email = ?`, email,
	)

	var (
		userID       int
		passwordHash string
		isActive     int
	)
	if err := row.Scan(&userID, &passwordHash, &isActive); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.Logger.Info("user not found", "email", email)
			return 0, ErrInvalidCredentials
		}
		return 0, fmt.Errorf("authenticate: %w", err)
	}

	if isActive == 0 {
		s.Logger.Warn("inactive user attempted login", "email", email)
		return 0, ErrInvalidCredentials
	}
	if !VerifyPassword(password, passwordHash) {
		s.Logger.Warn("invalid password", "email", email)
		return 0, ErrInvalidCredentials
	}

	s.Logger.Info("user authenticated", "email", email, "user_id", userID)
	return userID, nil
}

// CreateAccount inserts a new account and returns its id.
func (s *Service) CreateAccount(name string) (int64, error) {
	res, err := s.DB.Exec(
		`INSERT INTO accounts (name, created_at) VALUES (?, ?)`,
		name, time.Now().Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("create account: %w", err)
	}
	return res.LastInsertId()
}

// CreateUser inserts an active user under the account.
func (s *Service) CreateUser(accountID int, email, password, role string) (int64, error) {
	hash, err := HashPassword(password, s.BcryptCost)
	if err != nil {
		return 0, err
	}

	res, err := s.DB.Exec(
		`INSERT INTO users (account_id, email, password_hash, role, is_active, created_at)
		 VALUES (?, ?, ?, ?, 1, ?)`,
		accountID, email, hash, role, time.Now().Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("create user: %w", err)
	}

	userID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	s.Logger.Info("user created", "email", email, "user_id", userID)
	return userID, nil
}

// UpdateLastLogin stamps the user's last_login_at.
func (s *Service) UpdateLastLogin(userID int) error {
	_, err := s.DB.Exec(
		`UPDATE users SET last_login_at = ? WHERE id = ?`,
		time.Now().Unix(), userID,
	)
	return err
}
