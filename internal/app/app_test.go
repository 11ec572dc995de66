package app

import (
	"log/slog"
	"strings"
	"testing"

	"cero/internal/config"
	"cero/internal/db"
	"cero/internal/httpd"
)

func testApp(t *testing.T, metricsEnabled bool) *App {
	t.Helper()
	d, err := db.Open(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	// One in-memory database per pool connection otherwise.
	d.SetMaxOpenConns(1)
	t.Cleanup(func() { d.Close() })

	cfg, err := config.Load(&config.CLI{})
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	cfg.Metrics.Enabled = metricsEnabled

	logger := slog.New(slog.NewTextHandler(testWriter{t}, nil))
	return New(cfg, d, logger)
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}

func getRequest(t *testing.T, path string) *httpd.Request {
	t.Helper()
	req, err := httpd.ParseRequest([]byte("GET " + path + " HTTP/1.1\r\nHost: localhost\r\n\r\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return req
}

func TestRouteTable(t *testing.T) {
	a := testApp(t, false)
	if got := a.Router.Len(); got != 12 {
		t.Errorf("routes = %d, want 12", got)
	}

	a = testApp(t, true)
	if got := a.Router.Len(); got != 13 {
		t.Errorf("routes with metrics = %d, want 13", got)
	}
}

func TestHomeAnonymous(t *testing.T) {
	a := testApp(t, false)

	resp := a.Home(getRequest(t, "/"))
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body := string(resp.Body())
	if !strings.Contains(body, `href="/login"`) {
		t.Errorf("anonymous home missing login link: %s", body)
	}
}

func TestHomeAuthenticated(t *testing.T) {
	a := testApp(t, false)

	req := getRequest(t, "/")
	req.Authenticated = true
	req.UserEmail = "alice@example.com"

	resp := a.Home(req)
	if !strings.Contains(string(resp.Body()), "alice@example.com") {
		t.Errorf("home not personalized: %s", resp.Body())
	}
}

func TestDashboardShowsIdentity(t *testing.T) {
	a := testApp(t, false)

	req := getRequest(t, "/dashboard")
	req.Authenticated = true
	req.UserID = 3
	req.AccountID = 9
	req.UserEmail = "alice@example.com"
	req.UserRole = "admin"

	resp := a.Dashboard(req)
	body := string(resp.Body())
	for _, want := range []string{"alice@example.com", "9", "admin"} {
		if !strings.Contains(body, want) {
			t.Errorf("dashboard missing %q: %s", want, body)
		}
	}
}

func TestBillingPageWithoutSubscription(t *testing.T) {
	a := testApp(t, false)

	req := getRequest(t, "/billing")
	req.Authenticated = true
	req.AccountID = 1
	req.UserEmail = "alice@example.com"

	resp := a.BillingPage(req)
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body := string(resp.Body())
	if !strings.Contains(body, "free") {
		t.Errorf("missing subscription defaults: %s", body)
	}
}

func TestMetricsRoute(t *testing.T) {
	a := testApp(t, true)

	resp := a.Router.Dispatch(getRequest(t, "/metrics"))
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if !strings.Contains(string(resp.Body()), "go_goroutines") {
		t.Error("metrics output missing go collector series")
	}
}

func TestSessionValidationOutcomesCounted(t *testing.T) {
	a := testApp(t, true)

	req := getRequest(t, "/dashboard")
	if a.Server.Sessions.Validate("no-such-token", req) {
		t.Fatal("bogus token validated")
	}

	accountID, err := a.Auth.CreateAccount("acme")
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	userID, err := a.Auth.CreateUser(int(accountID), "alice@example.com", "hunter2", "member")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	token, err := a.Sessions.Create(int(userID), "127.0.0.1", "test")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if !a.Server.Sessions.Validate(token, getRequest(t, "/dashboard")) {
		t.Fatal("fresh session rejected")
	}

	body := string(a.Metrics.Handler()(getRequest(t, "/metrics")).Body())
	for _, want := range []string{
		`cero_session_validations_total{outcome="invalid"} 1`,
		`cero_session_validations_total{outcome="valid"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestAdminRouteRequiresAdmin(t *testing.T) {
	a := testApp(t, false)

	req := getRequest(t, "/admin/billing")
	req.Authenticated = true
	req.UserRole = "member"

	resp := a.Router.Dispatch(req)
	if resp.StatusCode != 403 {
		t.Errorf("status = %d, want 403", resp.StatusCode)
	}
}
