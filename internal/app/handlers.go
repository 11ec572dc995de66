package app

import (
	"errors"
	"strconv"
	"time"

	"cero/internal/billing"
	"cero/internal/httpd"
	"cero/internal/templates"
)

// Home renders the landing page, personalized when the request carries
// a valid session.
func (a *App) Home(req *httpd.Request) *httpd.Response {
	resp := httpd.NewResponse()
	resp.SetContentType("text/html")

	var html string
	var err error
	if req.Authenticated {
		html, err = templates.Render("home_user.html", map[string]any{
			"email": req.UserEmail,
		})
	} else {
		html, err = templates.Render("home.html", nil)
	}
	if err != nil {
		a.Logger.Error("render home page", "err", err)
		resp.SetStatus(500)
		resp.SetBody("<h1>Error</h1>")
		return resp
	}
	resp.SetBody(html)
	return resp
}

// Dashboard shows the logged-in user's identity and role.
func (a *App) Dashboard(req *httpd.Request) *httpd.Response {
	resp := httpd.NewResponse()
	resp.SetContentType("text/html")

	html, err := templates.Render("dashboard.html", map[string]any{
		"email":      req.UserEmail,
		"account_id": strconv.Itoa(req.AccountID),
		"role":       req.UserRole,
	})
	if err != nil {
		a.Logger.Error("render dashboard", "err", err)
		resp.SetStatus(500)
		resp.SetBody("<h1>Error</h1>")
		return resp
	}
	resp.SetBody(html)
	return resp
}

// BillingPage shows the account's subscription state. Accounts without
// a subscription row are shown as free/expired.
func (a *App) BillingPage(req *httpd.Request) *httpd.Response {
	resp := httpd.NewResponse()
	resp.SetContentType("text/html")

	plan := string(billing.PlanFree)
	status := string(billing.StatusExpired)
	validUntil := "-"

	sub, err := a.Billing.GetByAccount(req.AccountID)
	if err != nil && !errors.Is(err, billing.ErrNoSubscription) {
		a.Logger.Error("load subscription", "account_id", req.AccountID, "err", err)
		resp.SetStatus(500)
		resp.SetBody("<h1>Error</h1>")
		return resp
	}
	if sub != nil {
		plan = string(sub.Plan)
		status = string(sub.Status)
		validUntil = sub.ValidUntil.Format(time.DateOnly)
	}

	html, err := templates.Render("billing.html", map[string]any{
		"account_id":  strconv.Itoa(req.AccountID),
		"email":       req.UserEmail,
		"plan":        plan,
		"status":      status,
		"valid_until": validUntil,
	})
	if err != nil {
		a.Logger.Error("render billing page", "err", err)
		resp.SetStatus(500)
		resp.SetBody("<h1>Error</h1>")
		return resp
	}
	resp.SetBody(html)
	return resp
}
