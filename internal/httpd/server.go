package httpd

import (
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// readBufferSize is the fixed per-connection read buffer. Whatever
// arrives in one blocking read is the complete request; larger bodies
// are truncated. This is a documented limitation, not a bug to fix.
const readBufferSize = 64 << 10

// Limiter admits or rejects a client before any routing happens.
// A false result with a nil error means the rate limit was exceeded.
type Limiter interface {
	CheckIP(ip string) (bool, error)
}

// SessionValidator resolves a session token and, on success, populates
// the request's identity fields.
type SessionValidator interface {
	Validate(token string, req *Request) bool
}

// Server owns the listening socket and the sequential accept loop.
// Exactly one connection is processed at a time, start to finish,
// before the next accept.
type Server struct {
	Addr          string
	Router        *Router
	Limiter       Limiter          // optional
	Sessions      SessionValidator // optional
	SessionCookie string
	Logger        *slog.Logger

	// Observe, when set, is called once per handled connection with the
	// final status and elapsed time.
	Observe func(method string, status int, elapsed time.Duration)

	ln      net.Listener
	closing atomic.Bool
}

// ListenAndServe binds the configured address and runs the accept loop.
// Bind and listen failures are fatal and returned to the caller; accept
// failures are logged and the loop continues.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.Addr, err)
	}
	return s.Serve(ln)
}

// Serve runs the accept loop on an existing listener until Close.
func (s *Server) Serve(ln net.Listener) error {
	s.ln = ln
	s.Logger.Info("server listening", "addr", ln.Addr().String())

	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.closing.Load() {
				s.Logger.Info("server stopped")
				return nil
			}
			s.Logger.Error("accept failed", "err", err)
			continue
		}
		s.handleConn(conn)
	}
}

// Close stops the accept loop. A connection already being handled is
// not interrupted.
func (s *Server) Close() {
	s.closing.Store(true)
	if s.ln != nil {
		_ = s.ln.Close()
	}
}

// handleConn runs the full pipeline for one connection:
// read -> parse -> rate limit -> session -> route -> serialize -> close.
func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	start := time.Now()
	reqID := uuid.NewString()
	ip, port := clientAddr(conn)

	buf := make([]byte, readBufferSize)
	n, err := conn.Read(buf)
	if n <= 0 {
		if err != nil {
			s.Logger.Debug("read failed", "request_id", reqID, "client", ip, "err", err)
		}
		return
	}

	req, err := ParseRequest(buf[:n])
	if err != nil {
		s.Logger.Warn("bad request", "request_id", reqID, "client", ip, "err", err)
		s.sendError(conn, 400, "Bad Request")
		s.observe("UNKNOWN", 400, start)
		return
	}
	req.ClientIP = ip
	req.ClientPort = port

	if s.Limiter != nil {
		ok, err := s.Limiter.CheckIP(ip)
		if err != nil {
			s.Logger.Error("rate limit check failed", "request_id", reqID, "err", err)
			s.sendError(conn, 500, "Internal Server Error")
			s.observe(req.Method.String(), 500, start)
			return
		}
		if !ok {
			s.Logger.Warn("rate limit exceeded", "request_id", reqID, "client", ip)
			s.sendError(conn, 429, "Too Many Requests")
			s.observe(req.Method.String(), 429, start)
			return
		}
	}

	if s.Sessions != nil {
		if token, ok := req.Cookie(s.SessionCookie); ok {
			if s.Sessions.Validate(token, req) {
				s.Logger.Debug("session valid", "request_id", reqID, "user_id", req.UserID)
			}
		}
	}

	resp := s.Router.Dispatch(req)
	if resp == nil {
		s.Logger.Error("handler returned nil response",
			"request_id", reqID,
			"method", req.Method.String(),
			"path", req.Path,
		)
		s.sendError(conn, 500, "Internal Server Error")
		s.observe(req.Method.String(), 500, start)
		return
	}

	s.send(conn, resp)
	s.Logger.Info("request",
		"request_id", reqID,
		"method", req.Method.String(),
		"path", req.Path,
		"status", resp.StatusCode,
		"client", ip,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	s.observe(req.Method.String(), resp.StatusCode, start)
}

func (s *Server) observe(method string, status int, start time.Time) {
	if s.Observe != nil {
		s.Observe(method, status, time.Since(start))
	}
}

func (s *Server) send(conn net.Conn, resp *Response) {
	out := resp.Build()
	sent, err := conn.Write(out)
	if err != nil {
		s.Logger.Error("write failed", "err", err)
		return
	}
	if sent != len(out) {
		s.Logger.Warn("incomplete write", "sent", sent, "total", len(out))
	}
}

func (s *Server) sendError(conn net.Conn, status int, message string) {
	resp := NewResponse()
	resp.SetStatus(status)
	resp.SetContentType("text/html")
	resp.SetBody(fmt.Sprintf(
		"<html><head><title>%d Error</title></head><body><h1>%d Error</h1><p>%s</p></body></html>",
		status, status, message,
	))
	s.send(conn, resp)
}

func clientAddr(conn net.Conn) (string, int) {
	host, portStr, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		return "unknown", 0
	}
	port, _ := strconv.Atoi(portStr)
	return host, port
}
