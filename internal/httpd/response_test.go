package httpd

import (
	"strings"
	"testing"
)

func contentLengthHeaders(r *Response) []string {
	var out []string
	for _, h := range r.Headers() {
		if strings.HasPrefix(h, "Content-Length:") {
			out = append(out, h)
		}
	}
	return out
}

func TestNewResponseDefaults(t *testing.T) {
	resp := NewResponse()
	if resp.StatusCode != 200 || resp.StatusMessage != "OK" {
		t.Errorf("defaults = %d %q, want 200 OK", resp.StatusCode, resp.StatusMessage)
	}
	if len(resp.Body()) != 0 {
		t.Errorf("default body = %q, want empty", resp.Body())
	}
	if len(resp.Headers()) != 0 {
		t.Errorf("default headers = %v, want none", resp.Headers())
	}
}

func TestSetStatus(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{200, "OK"},
		{301, "Moved Permanently"},
		{302, "Found"},
		{400, "Bad Request"},
		{403, "Forbidden"},
		{404, "Not Found"},
		{429, "Too Many Requests"},
		{500, "Internal Server Error"},
		{418, "Unknown"},
		{599, "Unknown"},
	}
	for _, tt := range tests {
		resp := NewResponse()
		resp.SetStatus(tt.code)
		if resp.StatusMessage != tt.want {
			t.Errorf("SetStatus(%d) message = %q, want %q", tt.code, resp.StatusMessage, tt.want)
		}
	}
}

func TestContentLengthInvariant(t *testing.T) {
	resp := NewResponse()

	calls := []func(){
		func() { resp.SetBody("hello") },
		func() { resp.AppendBody(" world") },
		func() { resp.AppendBody("!") },
		func() { resp.SetBody("reset") },
		func() { resp.SetBody("") },
		func() { resp.AppendBody("again") },
	}
	wantLens := []string{"5", "11", "12", "5", "0", "5"}

	for i, call := range calls {
		call()
		cls := contentLengthHeaders(resp)
		if len(cls) != 1 {
			t.Fatalf("after mutation %d: %d Content-Length headers, want exactly 1", i, len(cls))
		}
		want := "Content-Length: " + wantLens[i]
		if cls[0] != want {
			t.Errorf("after mutation %d: %q, want %q", i, cls[0], want)
		}
	}
}

func TestBodyGrowthDoubling(t *testing.T) {
	resp := NewResponse()
	big := strings.Repeat("a", initialBodyCapacity+1)
	resp.SetBody(big)
	if got := cap(resp.body); got != len(big)*2 {
		t.Errorf("capacity after growth = %d, want %d", got, len(big)*2)
	}
	if string(resp.Body()) != big {
		t.Error("body content lost during growth")
	}
}

func TestBuildWireFormat(t *testing.T) {
	resp := NewResponse()
	resp.SetStatus(404)
	resp.SetBody("not found")

	out := string(resp.Build())
	if !strings.HasPrefix(out, "HTTP/1.1 404 Not Found\r\n") {
		t.Errorf("serialized output begins %q", out[:min(len(out), 30)])
	}
	if !strings.Contains(out, "Content-Length: 9\r\n") {
		t.Errorf("missing Content-Length: 9 in %q", out)
	}
	if !strings.HasSuffix(out, "\r\n\r\nnot found") {
		t.Errorf("body placement wrong in %q", out)
	}
}

func TestBuildEmptyBody(t *testing.T) {
	resp := NewResponse()
	out := string(resp.Build())
	if out != "HTTP/1.1 200 OK\r\n\r\n" {
		t.Errorf("empty response = %q", out)
	}
}

func TestRedirect(t *testing.T) {
	resp := NewResponse()
	resp.SetBody("stale")
	resp.Redirect("/login", false)

	if resp.StatusCode != 302 {
		t.Errorf("status = %d, want 302", resp.StatusCode)
	}
	if len(resp.Body()) != 0 {
		t.Errorf("redirect body = %q, want empty", resp.Body())
	}
	var found bool
	for _, h := range resp.Headers() {
		if h == "Location: /login" {
			found = true
		}
	}
	if !found {
		t.Errorf("Location header missing: %v", resp.Headers())
	}

	perm := NewResponse()
	perm.Redirect("/new", true)
	if perm.StatusCode != 301 {
		t.Errorf("permanent status = %d, want 301", perm.StatusCode)
	}
}

func TestSetCookie(t *testing.T) {
	resp := NewResponse()
	resp.SetCookie("session", "tok123", 604800, true, false, "Strict")

	want := "Set-Cookie: session=tok123; Max-Age=604800; HttpOnly; SameSite=Strict; Path=/"
	if got := resp.Headers()[0]; got != want {
		t.Errorf("cookie header = %q, want %q", got, want)
	}
}

func TestDeleteCookie(t *testing.T) {
	resp := NewResponse()
	resp.DeleteCookie("session")

	got := resp.Headers()[0]
	if !strings.Contains(got, "session=;") {
		t.Errorf("deleted cookie should have empty value: %q", got)
	}
	if !strings.Contains(got, "Max-Age=-1") {
		t.Errorf("deleted cookie should carry a negative Max-Age: %q", got)
	}
}

func TestHeaderCapacity(t *testing.T) {
	resp := NewResponse()
	for i := 0; i < MaxResponseHeaders+5; i++ {
		resp.AddHeader("X-N", "v")
	}
	if len(resp.Headers()) != MaxResponseHeaders {
		t.Errorf("header count = %d, want %d", len(resp.Headers()), MaxResponseHeaders)
	}
}
