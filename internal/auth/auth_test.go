package auth

import (
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"cero/internal/db"
	"cero/internal/httpd"
	"cero/internal/session"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	d, err := db.Open(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	// One in-memory database per pool connection otherwise.
	d.SetMaxOpenConns(1)
	t.Cleanup(func() { d.Close() })
	return d
}

func testService(t *testing.T) (*Service, *session.Store) {
	t.Helper()
	d := testDB(t)
	logger := slog.New(slog.NewTextHandler(testWriter{t}, nil))
	sessions := session.NewStore(d, logger)
	return &Service{DB: d, Sessions: sessions, Logger: logger, BcryptCost: bcrypt.MinCost}, sessions
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}

func seedUser(t *testing.T, svc *Service, email, password, role string) int {
	t.Helper()
	accountID, err := svc.CreateAccount("acme")
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	userID, err := svc.CreateUser(int(accountID), email, password, role)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return int(userID)
}

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("s3cret", bcrypt.MinCost)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if hash == "s3cret" {
		t.Fatal("hash equals plaintext")
	}
	if !VerifyPassword("s3cret", hash) {
		t.Error("correct password rejected")
	}
	if VerifyPassword("wrong", hash) {
		t.Error("wrong password accepted")
	}
}

func TestAuthenticate(t *testing.T) {
	svc, _ := testService(t)
	userID := seedUser(t, svc, "alice@example.com", "hunter2", "member")

	got, err := svc.Authenticate("alice@example.com", "hunter2")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if got != userID {
		t.Errorf("user id = %d, want %d", got, userID)
	}

	if _, err := svc.Authenticate("alice@example.com", "wrong"); err != ErrInvalidCredentials {
		t.Errorf("wrong password: err = %v, want ErrInvalidCredentials", err)
	}
	if _, err := svc.Authenticate("nobody@example.com", "hunter2"); err != ErrInvalidCredentials {
		t.Errorf("unknown email: err = %v, want ErrInvalidCredentials", err)
	}
}

func TestAuthenticateInactiveUser(t *testing.T) {
	svc, _ := testService(t)
	userID := seedUser(t, svc, "bob@example.com", "hunter2", "member")

	if _, err := svc.DB.Exec(`UPDATE users SET is_active = 0 WHERE id = ?`, userID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if _, err := svc.Authenticate("bob@example.com", "hunter2"); err != ErrInvalidCredentials {
		t.Errorf("inactive user: err = %v, want ErrInvalidCredentials", err)
	}
}

func postLogin(t *testing.T, email, password string) *httpd.Request {
	t.Helper()
	body := fmt.Sprintf("email=%s&password=%s", email, password)
	raw := "POST /login HTTP/1.1\r\n" +
		"Host: localhost\r\n" +
		"Content-Type: application/x-www-form-urlencoded\r\n" +
		fmt.Sprintf("Content-Length: %d\r\n", len(body)) +
		"\r\n" + body
	req, err := httpd.ParseRequest([]byte(raw))
	if err != nil {
		t.Fatalf("parse login request: %v", err)
	}
	req.ClientIP = "127.0.0.1"
	return req
}

func TestLoginSubmitSetsCookieAndRedirects(t *testing.T) {
	svc, sessions := testService(t)
	seedUser(t, svc, "alice@example.com", "hunter2", "member")

	resp := svc.LoginSubmit(postLogin(t, "alice@example.com", "hunter2"))

	if resp.StatusCode != 302 {
		t.Fatalf("status = %d, want 302", resp.StatusCode)
	}

	var cookie, location string
	for _, h := range resp.Headers() {
		if strings.HasPrefix(h, "Set-Cookie: ") {
			cookie = strings.TrimPrefix(h, "Set-Cookie: ")
		}
		if strings.HasPrefix(h, "Location: ") {
			location = strings.TrimPrefix(h, "Location: ")
		}
	}
	if location != "/dashboard" {
		t.Errorf("Location = %q, want /dashboard", location)
	}
	if !strings.HasPrefix(cookie, session.CookieName+"=") {
		t.Fatalf("Set-Cookie = %q, want %s=...", cookie, session.CookieName)
	}
	if !strings.Contains(cookie, "HttpOnly") {
		t.Errorf("cookie missing HttpOnly: %q", cookie)
	}

	// The token in the cookie must resolve to a stored session.
	token := strings.SplitN(strings.SplitN(cookie, ";", 2)[0], "=", 2)[1]
	if _, err := sessions.GetByToken(token); err != nil {
		t.Errorf("session for cookie token: %v", err)
	}
}

func TestLoginSubmitBadCredentials(t *testing.T) {
	svc, _ := testService(t)
	seedUser(t, svc, "alice@example.com", "hunter2", "member")

	resp := svc.LoginSubmit(postLogin(t, "alice@example.com", "wrong"))
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d, want 200 (login form re-rendered)", resp.StatusCode)
	}
	if !strings.Contains(string(resp.Body()), "Invalid email or password") {
		t.Error("body missing failure message")
	}
	for _, h := range resp.Headers() {
		if strings.HasPrefix(h, "Set-Cookie: ") {
			t.Errorf("unexpected Set-Cookie on failed login: %q", h)
		}
	}
}

func TestLoginSubmitMissingFields(t *testing.T) {
	svc, _ := testService(t)

	raw := "POST /login HTTP/1.1\r\n" +
		"Host: localhost\r\n" +
		"Content-Type: application/x-www-form-urlencoded\r\n" +
		"Content-Length: 11\r\n" +
		"\r\nemail=a%40b"
	req, err := httpd.ParseRequest([]byte(raw))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	resp := svc.LoginSubmit(req)
	if resp.StatusCode != 400 {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestLogoutDeletesSessionAndExpiresCookie(t *testing.T) {
	svc, sessions := testService(t)
	userID := seedUser(t, svc, "alice@example.com", "hunter2", "member")

	token, err := sessions.Create(userID, "127.0.0.1", "test")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	raw := "GET /logout HTTP/1.1\r\n" +
		"Host: localhost\r\n" +
		"Cookie: " + session.CookieName + "=" + token + "\r\n" +
		"\r\n"
	req, err := httpd.ParseRequest([]byte(raw))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	resp := svc.Logout(req)
	if resp.StatusCode != 302 {
		t.Fatalf("status = %d, want 302", resp.StatusCode)
	}
	if _, err := sessions.GetByToken(token); err == nil {
		t.Error("session still present after logout")
	}

	var expired bool
	for _, h := range resp.Headers() {
		if strings.HasPrefix(h, "Set-Cookie: "+session.CookieName+"=;") &&
			strings.Contains(h, "Max-Age=-1") {
			expired = true
		}
	}
	if !expired {
		t.Errorf("no expiring Set-Cookie header in %v", resp.Headers())
	}
}
