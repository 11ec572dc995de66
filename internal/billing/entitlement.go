package billing

import (
	"errors"
	"time"
)

// Feature is a plan-gated capability.
type Feature int

const (
	FeatureBasicReports Feature = iota
	FeatureAdvancedReports
	FeatureExtendedDateRange
	FeatureCSVExport
	FeatureReportGrouping
	FeatureAPIAccess
	FeaturePrioritySupport
)

func (f Feature) String() string {
	switch f {
	case FeatureBasicReports:
		return "Basic Reports"
	case FeatureAdvancedReports:
		return "Advanced Reports"
	case FeatureExtendedDateRange:
		return "Extended Date Range"
	case FeatureCSVExport:
		return "CSV Export"
	case FeatureReportGrouping:
		return "Report Grouping"
	case FeatureAPIAccess:
		return "API Access"
	case FeaturePrioritySupport:
		return "Priority Support"
	default:
		return "Unknown"
	}
}

// HasFeature reports whether the account's current subscription grants
// the feature. Missing or invalid subscriptions grant nothing.
func (st *Store) HasFeature(accountID int, feature Feature) bool {
	sub, err := st.GetByAccount(accountID)
	if err != nil {
		if !errors.Is(err, ErrNoSubscription) {
			st.Logger.Error("entitlement lookup failed", "account_id", accountID, "err", err)
		}
		return false
	}
	if !sub.IsValid(time.Now()) {
		return false
	}
	return planGrants(sub.Plan, feature)
}

func planGrants(plan Plan, feature Feature) bool {
	switch plan {
	case PlanFree:
		return feature == FeatureBasicReports
	case PlanPro:
		return feature != FeaturePrioritySupport
	case PlanEnterprise:
		return true
	default:
		return false
	}
}

// MaxReportDays returns the widest report date range the account's plan
// allows. Accounts without a valid subscription get the free tier's 7.
func (st *Store) MaxReportDays(accountID int) int {
	sub, err := st.GetByAccount(accountID)
	if err != nil || !sub.IsValid(time.Now()) {
		return 7
	}
	switch sub.Plan {
	case PlanPro:
		return 90
	case PlanEnterprise:
		return 365
	default:
		return 7
	}
}

// CanExportCSV reports whether the account may export reports as CSV.
func (st *Store) CanExportCSV(accountID int) bool {
	return st.HasFeature(accountID, FeatureCSVExport)
}

// CanUseGrouping reports whether the account may group report rows.
func (st *Store) CanUseGrouping(accountID int) bool {
	return st.HasFeature(accountID, FeatureReportGrouping)
}
