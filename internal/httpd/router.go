package httpd

import "log/slog"

// MaxRoutes bounds the route table.
const MaxRoutes = 100

// AdminRole is the role required by routes registered with requiresAdmin.
const AdminRole = "admin"

// Handler produces a response for an enriched request. A nil response is
// treated as an internal error by the server loop.
type Handler func(*Request) *Response

// Route is one entry in the dispatch table. Matching is exact on method
// and path; no wildcards, no path parameters.
type Route struct {
	Method        Method
	Path          string
	Handler       Handler
	RequiresAuth  bool
	RequiresAdmin bool
}

// Router holds the route table. Routes are registered once at startup;
// the table is read-only afterward and dispatch is first-match in
// registration order.
type Router struct {
	routes []Route
	logger *slog.Logger
}

func NewRouter(logger *slog.Logger) *Router {
	return &Router{
		routes: make([]Route, 0, MaxRoutes),
		logger: logger,
	}
}

// Add registers a route. Registrations past MaxRoutes are dropped.
func (rt *Router) Add(method Method, path string, handler Handler, requiresAuth, requiresAdmin bool) {
	if len(rt.routes) >= MaxRoutes {
		rt.logger.Error("route table full", "path", path)
		return
	}
	rt.routes = append(rt.routes, Route{
		Method:        method,
		Path:          path,
		Handler:       handler,
		RequiresAuth:  requiresAuth,
		RequiresAdmin: requiresAdmin,
	})
	rt.logger.Debug("route registered",
		"method", method.String(),
		"path", path,
		"auth", requiresAuth,
		"admin", requiresAdmin,
	)
}

// Len returns the number of registered routes.
func (rt *Router) Len() int {
	return len(rt.routes)
}

// Dispatch finds the first matching route and runs its admission gates
// before invoking the handler. Unmatched requests get a 404. The auth
// gate redirects to /login; the admin gate returns 403. The handler is
// never invoked when a gate fails.
func (rt *Router) Dispatch(req *Request) *Response {
	for i := range rt.routes {
		route := &rt.routes[i]
		if route.Method != req.Method || route.Path != req.Path {
			continue
		}

		if route.RequiresAuth && !req.Authenticated {
			rt.logger.Info("authentication required", "path", req.Path)
			resp := NewResponse()
			resp.Redirect("/login", false)
			return resp
		}

		if route.RequiresAdmin && req.UserRole != AdminRole {
			rt.logger.Warn("admin access denied", "path", req.Path, "user", req.UserEmail)
			resp := NewResponse()
			resp.SetStatus(403)
			resp.SetContentType("text/html")
			resp.SetBody("<h1>403 Forbidden</h1><p>Admin access required</p>")
			return resp
		}

		return route.Handler(req)
	}

	rt.logger.Info("no route", "method", req.Method.String(), "path", req.Path)
	resp := NewResponse()
	resp.SetStatus(404)
	resp.SetContentType("text/html")
	resp.SetBody("<h1>404 Not Found</h1><p>The requested page does not exist.</p>")
	return resp
}
