package session

import (
	"database/sql"
	"io"
	"log/slog"
	"testing"
	"time"

	"cero/internal/db"
	"cero/internal/httpd"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	d, err := db.Open(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	// One connection, or each pool conn gets its own empty memory db.
	d.SetMaxOpenConns(1)
	t.Cleanup(func() { d.Close() })
	return d
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seedUser(t *testing.T, d *sql.DB, email, role string, active int) int {
	t.Helper()
	now := time.Now().Unix()
	if _, err := d.Exec(`INSERT INTO accounts (name, created_at) VALUES (?, ?)`, "acme", now); err != nil {
		t.Fatal(err)
	}
	res, err := d.Exec(
		`INSERT INTO users (account_id, email, password_hash, role, is_active, created_at)
		 VALUES (1, ?, 'x', ?, ?, ?)`,
		email, role, active, now,
	)
	if err != nil {
		t.Fatal(err)
	}
	id, _ := res.LastInsertId()
	return int(id)
}

func TestCreateAndValidate(t *testing.T) {
	d := testDB(t)
	store := NewStore(d, testLogger())
	userID := seedUser(t, d, "a@b.com", "member", 1)

	token, err := store.Create(userID, "10.0.0.1", "test-agent")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(token) != 64 {
		t.Errorf("token length = %d, want 64 hex chars", len(token))
	}

	req := &httpd.Request{}
	if !store.Validate(token, req) {
		t.Fatal("Validate returned false for a fresh session")
	}
	if !req.Authenticated {
		t.Error("request not marked authenticated")
	}
	if req.UserID != userID || req.AccountID != 1 {
		t.Errorf("identity = user %d account %d", req.UserID, req.AccountID)
	}
	if req.UserEmail != "a@b.com" || req.UserRole != "member" {
		t.Errorf("identity = %q %q", req.UserEmail, req.UserRole)
	}
}

func TestValidateUnknownToken(t *testing.T) {
	d := testDB(t)
	store := NewStore(d, testLogger())
	seedUser(t, d, "a@b.com", "member", 1)

	req := &httpd.Request{}
	if store.Validate("deadbeef", req) {
		t.Error("Validate accepted an unknown token")
	}
	if req.Authenticated {
		t.Error("identity enriched on failed validation")
	}
}

func TestValidateInactiveUser(t *testing.T) {
	d := testDB(t)
	store := NewStore(d, testLogger())
	userID := seedUser(t, d, "a@b.com", "member", 0)

	token, err := store.Create(userID, "", "")
	if err != nil {
		t.Fatal(err)
	}
	if store.Validate(token, &httpd.Request{}) {
		t.Error("Validate accepted a session for an inactive user")
	}
}

func TestValidateAbsoluteExpiry(t *testing.T) {
	d := testDB(t)
	store := NewStore(d, testLogger())
	userID := seedUser(t, d, "a@b.com", "member", 1)

	token, err := store.Create(userID, "", "")
	if err != nil {
		t.Fatal(err)
	}

	// Jump past the absolute expiry.
	store.Now = func() time.Time { return time.Now().Add(store.Expiry + time.Hour) }
	if store.Validate(token, &httpd.Request{}) {
		t.Error("Validate accepted a session past its absolute expiry")
	}
}

func TestValidateInactivityWindow(t *testing.T) {
	d := testDB(t)
	store := NewStore(d, testLogger())
	userID := seedUser(t, d, "a@b.com", "member", 1)

	// Session with last activity 2 days ago but expiry still in the
	// future: the 1-day inactivity window alone must invalidate it.
	now := time.Now().Unix()
	if _, err := d.Exec(
		`INSERT INTO sessions (user_id, token, created_at, expires_at, last_activity_at)
		 VALUES (?, 'stale-token', ?, ?, ?)`,
		userID, now-2*86400, now+5*86400, now-2*86400,
	); err != nil {
		t.Fatal(err)
	}

	req := &httpd.Request{}
	if store.Validate("stale-token", req) {
		t.Error("Validate accepted a session outside the inactivity window")
	}
	if req.Authenticated {
		t.Error("identity enriched despite inactivity failure")
	}

	// Failed validation must not delete the row; cleanup owns that.
	var n int
	if err := d.QueryRow(`SELECT COUNT(*) FROM sessions WHERE token = 'stale-token'`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Error("failed validation deleted the session row")
	}
}

func TestValidateTouchesSession(t *testing.T) {
	d := testDB(t)
	store := NewStore(d, testLogger())
	userID := seedUser(t, d, "a@b.com", "member", 1)

	token, err := store.Create(userID, "", "")
	if err != nil {
		t.Fatal(err)
	}

	// Backdate last activity, then validate at a known instant.
	if _, err := d.Exec(`UPDATE sessions SET last_activity_at = ? WHERE token = ?`,
		time.Now().Unix()-3600, token); err != nil {
		t.Fatal(err)
	}
	at := time.Now()
	store.Now = func() time.Time { return at }
	if !store.Validate(token, &httpd.Request{}) {
		t.Fatal("Validate failed")
	}

	sess, err := store.GetByToken(token)
	if err != nil {
		t.Fatal(err)
	}
	if sess.LastActivityAt.Unix() != at.Unix() {
		t.Errorf("last_activity_at = %d, want %d (touched)", sess.LastActivityAt.Unix(), at.Unix())
	}
}

func TestDelete(t *testing.T) {
	d := testDB(t)
	store := NewStore(d, testLogger())
	userID := seedUser(t, d, "a@b.com", "member", 1)

	token, err := store.Create(userID, "", "")
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Delete(token); err != nil {
		t.Fatal(err)
	}
	if _, err := store.GetByToken(token); err != ErrNotFound {
		t.Errorf("GetByToken after delete = %v, want ErrNotFound", err)
	}
}

func TestCleanupExpired(t *testing.T) {
	d := testDB(t)
	store := NewStore(d, testLogger())
	userID := seedUser(t, d, "a@b.com", "member", 1)

	now := time.Now().Unix()
	rows := []struct {
		token     string
		expiresAt int64
		lastAct   int64
	}{
		{"live", now + 86400, now},
		{"expired", now - 10, now},
		{"inactive", now + 86400, now - 3*86400},
	}
	for _, r := range rows {
		if _, err := d.Exec(
			`INSERT INTO sessions (user_id, token, created_at, expires_at, last_activity_at)
			 VALUES (?, ?, ?, ?, ?)`,
			userID, r.token, now, r.expiresAt, r.lastAct,
		); err != nil {
			t.Fatal(err)
		}
	}

	deleted, err := store.CleanupExpired()
	if err != nil {
		t.Fatal(err)
	}
	if deleted != 2 {
		t.Errorf("deleted = %d, want 2", deleted)
	}
	if _, err := store.GetByToken("live"); err != nil {
		t.Errorf("live session removed: %v", err)
	}
}
