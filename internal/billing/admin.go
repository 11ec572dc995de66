package billing

import (
	"fmt"
	"strconv"
	"time"

	"cero/internal/httpd"
)

// BillingEvent is one append-only audit row.
type BillingEvent struct {
	ID                int
	AccountID         int
	EventType         string
	PreviousPlan      string
	NewPlan           string
	PreviousStatus    string
	NewStatus         string
	AmountCents       int
	Currency          string
	PaymentMethod     string
	ExternalReference string
	AdminUserID       int
	Notes             string
	OccurredAt        time.Time
}

// LogEvent appends a billing event.
func (st *Store) LogEvent(ev BillingEvent) error {
	if ev.Currency == "" {
		ev.Currency = "USD"
	}
	_, err := st.DB.Exec(
		`INSERT INTO billing_events (account_id, event_type, previous_plan, new_plan,
		                             previous_status, new_status, amount_cents, currency,
		                             payment_method, external_reference, admin_user_id, notes, occurred_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.AccountID, ev.EventType, ev.PreviousPlan, ev.NewPlan,
		ev.PreviousStatus, ev.NewStatus, ev.AmountCents, ev.Currency,
		ev.PaymentMethod, ev.ExternalReference, ev.AdminUserID, ev.Notes,
		time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("log billing event: %w", err)
	}
	st.Logger.Info("billing event", "type", ev.EventType, "account_id", ev.AccountID)
	return nil
}

// MarkAsPaid activates the account's subscription for durationDays and
// records a payment_received event.
func (st *Store) MarkAsPaid(accountID int, plan Plan, durationDays, amountCents int,
	paymentMethod, externalReference string, adminUserID int, notes string) error {

	validUntil := time.Now().Add(time.Duration(durationDays) * 24 * time.Hour)
	if err := st.Update(accountID, plan, StatusActive, validUntil, adminUserID, notes); err != nil {
		return err
	}

	if err := st.LogEvent(BillingEvent{
		AccountID:         accountID,
		EventType:         "payment_received",
		NewPlan:           string(plan),
		NewStatus:         string(StatusActive),
		AmountCents:       amountCents,
		PaymentMethod:     paymentMethod,
		ExternalReference: externalReference,
		AdminUserID:       adminUserID,
		Notes:             notes,
	}); err != nil {
		return err
	}

	st.Logger.Info("account marked paid",
		"account_id", accountID, "plan", string(plan), "days", durationDays, "amount_cents", amountCents)
	return nil
}

// EventsForAccount lists the account's billing events, newest first.
func (st *Store) EventsForAccount(accountID int) ([]BillingEvent, error) {
	rows, err := st.DB.Query(
		`SELECT id, account_id, event_type, previous_plan, new_plan, previous_status, new_status,
		        amount_cents, currency, payment_method, external_reference, admin_user_id, notes, occurred_at
		 FROM billing_events WHERE account_id = ? ORDER BY occurred_at DESC`,
		accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("billing events: %w", err)
	}
	defer rows.Close()

	var events []BillingEvent
	for rows.Next() {
		var ev BillingEvent
		var occurredAt int64
		if err := rows.Scan(&ev.ID, &ev.AccountID, &ev.EventType, &ev.PreviousPlan, &ev.NewPlan,
			&ev.PreviousStatus, &ev.NewStatus, &ev.AmountCents, &ev.Currency,
			&ev.PaymentMethod, &ev.ExternalReference, &ev.AdminUserID, &ev.Notes, &occurredAt); err != nil {
			return nil, err
		}
		ev.OccurredAt = time.Unix(occurredAt, 0)
		events = append(events, ev)
	}
	return events, rows.Err()
}

// AdminBillingPage renders the manual billing form.
func (st *Store) AdminBillingPage(req *httpd.Request) *httpd.Response {
	resp := httpd.NewResponse()
	resp.SetContentType("text/html")
	resp.SetBody(fmt.Sprintf(
		`<html><head><title>Admin Billing</title></head><body>`+
			`<h1>Admin Billing</h1>`+
			`<p>Logged in as: %s (Admin)</p>`+
			`<h2>Mark Account as Paid</h2>`+
			`<form method="POST" action="/admin/billing/mark-paid">`+
			`<p><label>Account ID: <input type="number" name="account_id" required></label></p>`+
			`<p><label>Plan: <select name="plan" required>`+
			`<option value="free">Free</option>`+
			`<option value="pro">Pro</option>`+
			`<option value="enterprise">Enterprise</option>`+
			`</select></label></p>`+
			`<p><label>Duration (days): <input type="number" name="duration" value="30" required></label></p>`+
			`<p><label>Amount ($): <input type="number" step="0.01" name="amount" required></label></p>`+
			`<p><label>Payment Method: <input type="text" name="payment_method" value="manual"></label></p>`+
			`<p><label>Reference: <input type="text" name="reference"></label></p>`+
			`<p><label>Notes: <textarea name="notes"></textarea></label></p>`+
			`<p><button type="submit">Mark as Paid</button></p>`+
			`</form>`+
			`<p><a href="/">Home</a> | <a href="/dashboard">Dashboard</a></p>`+
			`</body></html>`,
		req.UserEmail,
	))
	return resp
}

// AdminMarkPaid processes the mark-as-paid form.
func (st *Store) AdminMarkPaid(req *httpd.Request) *httpd.Response {
	resp := httpd.NewResponse()

	accountIDStr, okAccount := req.PostParam("account_id")
	planStr, okPlan := req.PostParam("plan")
	durationStr, okDuration := req.PostParam("duration")
	amountStr, okAmount := req.PostParam("amount")
	if !okAccount || !okPlan || !okDuration || !okAmount {
		resp.SetStatus(400)
		resp.SetContentType("text/html")
		resp.SetBody("<h1>Bad Request</h1><p>Missing required fields</p>")
		return resp
	}

	accountID, _ := strconv.Atoi(accountIDStr)
	duration, _ := strconv.Atoi(durationStr)
	amountDollars, _ := strconv.ParseFloat(amountStr, 64)
	amountCents := int(amountDollars * 100)

	paymentMethod, _ := req.PostParam("payment_method")
	if paymentMethod == "" {
		paymentMethod = "manual"
	}
	reference, _ := req.PostParam("reference")
	notes, _ := req.PostParam("notes")

	err := st.MarkAsPaid(accountID, ParsePlan(planStr), duration, amountCents,
		paymentMethod, reference, req.UserID, notes)
	if err != nil {
		st.Logger.Error("mark paid failed", "account_id", accountID, "err", err)
		resp.SetStatus(500)
		resp.SetContentType("text/html")
		resp.SetBody("<h1>Error</h1><p>Failed to process payment</p>")
		return resp
	}

	resp.SetContentType("text/html")
	resp.SetBody(fmt.Sprintf(
		`<html><head><title>Success</title></head><body>`+
			`<h1>Payment Processed</h1>`+
			`<p>Account %d marked as paid: %s for %d days ($%.2f)</p>`+
			`<p><a href="/admin/billing">Back to Admin Billing</a></p>`+
			`</body></html>`,
		accountID, planStr, duration, amountDollars,
	))
	return resp
}

// AdminSearchAccounts searches accounts by name or user email.
func (st *Store) AdminSearchAccounts(req *httpd.Request) *httpd.Response {
	resp := httpd.NewResponse()
	resp.SetContentType("text/html")

	query, _ := req.PostParam("q")
	body := `<html><head><title>Search Accounts</title></head><body><h1>Search Accounts</h1>`

	if query != "" {
		rows, err := st.DB.Query(
			`SELECT DISTINCT a.id, a.name FROM accounts a
			 LEFT JOIN users u ON u.account_id = a.id
			 WHERE a.name LIKE ? OR u.email LIKE ?
			 ORDER BY a.id LIMIT 50`,
			"%"+query+"%", "%"+query+"%",
		)
		if err != nil {
			st.Logger.Error("account search failed", "err", err)
			resp.SetStatus(500)
			resp.SetBody("<h1>Error</h1>")
			return resp
		}
		defer rows.Close()

		body += "<ul>"
		for rows.Next() {
			var id int
			var name string
			if err := rows.Scan(&id, &name); err != nil {
				break
			}
			body += fmt.Sprintf("<li>Account %d: %s</li>", id, name)
		}
		body += "</ul>"
	} else {
		body += "<p>No search query given</p>"
	}

	body += `<p><a href="/admin/billing">Back to Admin Billing</a></p></body></html>`
	resp.SetBody(body)
	return resp
}
