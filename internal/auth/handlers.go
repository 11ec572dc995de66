package auth

import (
	"errors"

	"cero/internal/httpd"
	"cero/internal/session"
	"cero/internal/templates"
)

// sessionCookieMaxAge matches the absolute session expiry.
const sessionCookieMaxAge = 7 * 86400

// LoginPage renders the login form, or redirects straight to the
// dashboard when the request already carries a valid session.
func (s *Service) LoginPage(req *httpd.Request) *httpd.Response {
	resp := httpd.NewResponse()

	if req.Authenticated {
		resp.Redirect("/dashboard", false)
		return resp
	}

	resp.SetContentType("text/html")
	html, err := templates.Render("login.html", map[string]any{
		"title": "Login",
		"error": "",
	})
	if err != nil {
		s.Logger.Error("render login page", "err", err)
		resp.SetStatus(500)
		resp.SetBody("<h1>Error</h1>")
		return resp
	}
	resp.SetBody(html)
	return resp
}

// LoginSubmit verifies the posted credentials, creates a session, sets
// the session cookie, and redirects to the dashboard.
func (s *Service) LoginSubmit(req *httpd.Request) *httpd.Response {
	resp := httpd.NewResponse()

	email, okEmail := req.PostParam("email")
	password, okPassword := req.PostParam("password")
	if !okEmail || !okPassword {
		s.Logger.Warn("missing email or password in login request")
		resp.SetStatus(400)
		resp.SetContentType("text/html")
		resp.SetBody(`<h1>Bad Request</h1><p><a href="/login">Try again</a></p>`)
		return resp
	}

	userID, err := s.Authenticate(email, password)
	if err != nil {
		if !errors.Is(err, ErrInvalidCredentials) {
			s.Logger.Error("authenticate failed", "err", err)
			resp.SetStatus(500)
			resp.SetContentType("text/html")
			resp.SetBody("<h1>Error</h1>")
			return resp
		}
		s.Logger.Info("failed login attempt", "email", email)
		resp.SetContentType("text/html")
		html, rerr := templates.Render("login.html", map[string]any{
			"title": "Login Failed",
			"error": "<p>Invalid email or password.</p>",
		})
		if rerr != nil {
			html = `<h1>Login Failed</h1><p><a href="/login">Try again</a></p>`
		}
		resp.SetBody(html)
		return resp
	}

	if err := s.UpdateLastLogin(userID); err != nil {
		s.Logger.Error("update last login", "user_id", userID, "err", err)
	}

	userAgent, _ := req.Header("User-Agent")
	token, err := s.Sessions.Create(userID, req.ClientIP, userAgent)
	if err != nil {
		s.Logger.Error("create session", "user_id", userID, "err", err)
		resp.SetStatus(500)
		resp.SetContentType("text/html")
		resp.SetBody("<h1>Error</h1><p>Failed to create session</p>")
		return resp
	}

	resp.SetCookie(session.CookieName, token, sessionCookieMaxAge, true, false, "Strict")
	resp.Redirect("/dashboard", false)

	s.Logger.Info("user logged in", "user_id", userID)
	return resp
}

// Logout deletes the stored session, expires the cookie, and redirects
// home. It works with or without a valid session.
func (s *Service) Logout(req *httpd.Request) *httpd.Response {
	resp := httpd.NewResponse()

	if token, ok := req.Cookie(session.CookieName); ok {
		if err := s.Sessions.Delete(token); err != nil {
			s.Logger.Error("delete session", "err", err)
		} else {
			s.Logger.Info("user logged out")
		}
	}

	resp.DeleteCookie(session.CookieName)
	resp.Redirect("/", false)
	return resp
}
