// Package billing implements subscription state, plan entitlements, and
// the manual admin billing workflows.
package billing

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Plan is a subscription tier.
type Plan string

const (
	PlanFree       Plan = "free"
	PlanPro        Plan = "pro"
	PlanEnterprise Plan = "enterprise"
)

// ParsePlan maps a stored string to a Plan, defaulting to free.
func ParsePlan(s string) Plan {
	switch s {
	case string(PlanPro):
		return PlanPro
	case string(PlanEnterprise):
		return PlanEnterprise
	default:
		return PlanFree
	}
}

// Status is a subscription lifecycle state.
type Status string

const (
	StatusActive      Status = "active"
	StatusGracePeriod Status = "grace_period"
	StatusExpired     Status = "expired"
	StatusCancelled   Status = "cancelled"
)

// ParseStatus maps a stored string to a Status, defaulting to expired.
func ParseStatus(s string) Status {
	switch s {
	case string(StatusActive):
		return StatusActive
	case string(StatusGracePeriod):
		return StatusGracePeriod
	case string(StatusCancelled):
		return StatusCancelled
	default:
		return StatusExpired
	}
}

// ErrNoSubscription is returned when an account has no subscription row.
var ErrNoSubscription = errors.New("billing: no subscription")

// Subscription is one account's subscription row.
type Subscription struct {
	ID         int
	AccountID  int
	Plan       Plan
	Status     Status
	ValidFrom  time.Time
	ValidUntil time.Time
	GraceUntil time.Time // zero when no grace period applies
	Provider   string
	ExternalID string
	Notes      string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// IsValid reports whether the subscription grants access at the given
// instant, counting a cancelled or expired subscription still inside
// its grace period as valid.
func (s *Subscription) IsValid(now time.Time) bool {
	if s.Status == StatusCancelled || s.Status == StatusExpired {
		return !s.GraceUntil.IsZero() && !now.After(s.GraceUntil)
	}
	if now.Before(s.ValidFrom) || now.After(s.ValidUntil) {
		return false
	}
	return true
}

// Store queries and mutates subscription rows.
type Store struct {
	DB     *sql.DB
	Logger *slog.Logger
}

func NewStore(d *sql.DB, logger *slog.Logger) *Store {
	return &Store{DB: d, Logger: logger}
}

// GetByAccount loads the account's subscription, or ErrNoSubscription.
func (st *Store) GetByAccount(accountID int) (*Subscription, error) {
	row := st.DB.QueryRow(
		`SELECT id, account_id, plan, status, valid_from, valid_until, grace_until,
		        provider, external_id, notes, created_at, updated_at
		 FROM subscriptions WHERE account_id = ?`,
		accountID,
	)

	var sub Subscription
	var plan, status string
	var validFrom, validUntil, graceUntil, createdAt, updatedAt int64
	err := row.Scan(&sub.ID, &sub.AccountID, &plan, &status, &validFrom, &validUntil,
		&graceUntil, &sub.Provider, &sub.ExternalID, &sub.Notes, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoSubscription
	}
	if err != nil {
		return nil, fmt.Errorf("get subscription: %w", err)
	}

	sub.Plan = ParsePlan(plan)
	sub.Status = ParseStatus(status)
	sub.ValidFrom = time.Unix(validFrom, 0)
	sub.ValidUntil = time.Unix(validUntil, 0)
	if graceUntil > 0 {
		sub.GraceUntil = time.Unix(graceUntil, 0)
	}
	sub.CreatedAt = time.Unix(createdAt, 0)
	sub.UpdatedAt = time.Unix(updatedAt, 0)
	return &sub, nil
}

// Update upserts the account's subscription and records a
// subscription_updated billing event in the same transaction.
func (st *Store) Update(accountID int, plan Plan, status Status, validUntil time.Time, adminUserID int, notes string) error {
	current, err := st.GetByAccount(accountID)
	if err != nil && !errors.Is(err, ErrNoSubscription) {
		return err
	}

	tx, err := st.DB.Begin()
	if err != nil {
		return fmt.Errorf("update subscription: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().Unix()
	if current != nil {
		_, err = tx.Exec(
			`UPDATE subscriptions SET plan = ?, status = ?, valid_until = ?, notes = ?, updated_at = ?
			 WHERE account_id = ?`,
			string(plan), string(status), validUntil.Unix(), notes, now, accountID,
		)
	} else {
		_, err = tx.Exec(
			`INSERT INTO subscriptions (account_id, plan, status, valid_from, valid_until,
			                            grace_until, provider, external_id, notes, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, 0, 'manual', '', ?, ?, ?)`,
			accountID, string(plan), string(status), now, validUntil.Unix(), notes, now, now,
		)
	}
	if err != nil {
		return fmt.Errorf("update subscription: %w", err)
	}

	prevPlan, prevStatus := "", ""
	if current != nil {
		prevPlan = string(current.Plan)
		prevStatus = string(current.Status)
	}
	_, err = tx.Exec(
		`INSERT INTO billing_events (account_id, event_type, previous_plan, new_plan,
		                             previous_status, new_status, admin_user_id, notes, occurred_at)
		 VALUES (?, 'subscription_updated', ?, ?, ?, ?, ?, ?, ?)`,
		accountID, prevPlan, string(plan), prevStatus, string(status), adminUserID, notes, now,
	)
	if err != nil {
		return fmt.Errorf("log subscription event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("update subscription: %w", err)
	}

	st.Logger.Info("subscription updated",
		"account_id", accountID, "plan", string(plan), "status", string(status))
	return nil
}
