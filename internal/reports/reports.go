// Package reports generates per-day usage reports gated by the
// account's plan entitlements.
package reports

import (
	"fmt"
	"log/slog"
	"time"

	"cero/internal/billing"
)

// Grouping selects how report rows are bucketed.
type Grouping int

const (
	GroupNone Grouping = iota
	GroupByDay
	GroupByWeek
	GroupByMonth
)

// ParseGrouping maps a form value to a Grouping, defaulting to none.
func ParseGrouping(s string) Grouping {
	switch s {
	case "day":
		return GroupByDay
	case "week":
		return GroupByWeek
	case "month":
		return GroupByMonth
	default:
		return GroupNone
	}
}

// Params are the requested report bounds and options.
type Params struct {
	StartDate time.Time
	EndDate   time.Time
	ExportCSV bool
	Grouping  Grouping
}

// Row is one day of report output.
type Row struct {
	Date         string
	UserCount    int
	SessionCount int
	AccountCount int
}

// Service generates and validates reports.
type Service struct {
	Billing *billing.Store
	Logger  *slog.Logger
}

func NewService(b *billing.Store, logger *slog.Logger) *Service {
	return &Service{Billing: b, Logger: logger}
}

// Generate produces one row per day in [start, end). Usage counters are
// placeholder values until real activity tracking lands.
func (s *Service) Generate(accountID int, p Params) ([]Row, error) {
	days := int(p.EndDate.Sub(p.StartDate) / (24 * time.Hour))
	if days <= 0 {
		s.Logger.Warn("invalid report date range", "account_id", accountID)
		return nil, fmt.Errorf("reports: invalid date range")
	}

	rows := make([]Row, days)
	date := p.StartDate
	for i := range rows {
		rows[i] = Row{
			Date:         date.Format("2006-01-02"),
			UserCount:    1 + (i % 5),
			SessionCount: 5 + (i % 10),
			AccountCount: 1,
		}
		date = date.Add(24 * time.Hour)
	}

	s.Logger.Info("report generated", "account_id", accountID, "rows", days)
	return rows, nil
}

// ValidateParams checks the requested report against the account's
// entitlements. A non-nil error carries the user-facing reason.
func (s *Service) ValidateParams(accountID int, p Params) error {
	days := int(p.EndDate.Sub(p.StartDate) / (24 * time.Hour))

	maxDays := s.Billing.MaxReportDays(accountID)
	if days > maxDays {
		return fmt.Errorf("date range exceeds maximum of %d days for your plan", maxDays)
	}
	if p.ExportCSV && !s.Billing.CanExportCSV(accountID) {
		return fmt.Errorf("CSV export not available on your plan")
	}
	if p.Grouping != GroupNone && !s.Billing.CanUseGrouping(accountID) {
		return fmt.Errorf("report grouping not available on your plan")
	}
	return nil
}
