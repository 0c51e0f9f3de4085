// Package http serves the web UI: auth pages, house selection and the
// monthly dashboard. Rendering is server-side with HTMX partial swaps.
package http

import (
	"context"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"bilancio/internal/cache"
	"bilancio/internal/core"
	"bilancio/internal/docstore"
	"bilancio/internal/house"
	"bilancio/internal/identity"
	applog "bilancio/internal/log"
	"bilancio/internal/recurring"
	"bilancio/internal/viewmodel"
	appweb "bilancio/web"
)

const (
	sessionCookie = "bilancio_session"
	houseCookie   = "bilancio_house"
)

type Server struct {
	http.Server
	templates *template.Template

	store     docstore.Store
	provider  *identity.LocalProvider
	google    *identity.GoogleSignIn
	houses    *house.Manager
	recurring *recurring.Processor

	rateLimiter *rateLimiter
	metrics     *securityMetrics

	// summaryCache memoizes month rollups per house and snapshot
	// generation; superseded generations simply age out.
	summaryCache *cache.LRU[core.MonthSummary]

	views        *viewRegistry
	shutdownOnce sync.Once
}

// NewServer wires routes and parses the embedded templates. google may be
// nil when Google sign-in is not configured.
func NewServer(addr string, store docstore.Store, provider *identity.LocalProvider, google *identity.GoogleSignIn, houses *house.Manager) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server:       http.Server{Addr: addr, Handler: mux},
		store:        store,
		provider:     provider,
		google:       google,
		houses:       houses,
		recurring:    recurring.NewProcessor(store),
		rateLimiter:  newRateLimiter(),
		metrics:      &securityMetrics{},
		summaryCache: cache.NewLRU[core.MonthSummary](200, 5*time.Minute),
	}
	s.views = newViewRegistry(store)

	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		slog.Warn("Failed parsing templates", "error", err)
	}
	s.templates = t

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("/static/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "public, max-age=3600, immutable")
			static.ServeHTTP(w, r)
		}))
	} else {
		slog.Warn("Failed to mount embedded static FS", "error", err)
	}

	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", handleReady)

	mux.HandleFunc("/", s.secured(s.handleIndex))
	mux.HandleFunc("/login", s.secured(s.handleLoginPage))
	mux.HandleFunc("/auth/register", s.secured(s.handleRegister))
	mux.HandleFunc("/auth/login", s.secured(s.handleLogin))
	mux.HandleFunc("/auth/logout", s.secured(s.handleLogout))
	mux.HandleFunc("/auth/google", s.secured(s.handleGoogleStart))
	mux.HandleFunc("/auth/google/callback", s.secured(s.handleGoogleCallback))

	mux.HandleFunc("/house", s.secured(s.requireUser(s.handleHousePage)))
	mux.HandleFunc("/house/create", s.secured(s.requireUser(s.handleCreateHouse)))
	mux.HandleFunc("/house/join", s.secured(s.requireUser(s.handleJoinHouse)))
	mux.HandleFunc("/house/leave", s.secured(s.requireUser(s.handleLeaveHouse)))

	mux.HandleFunc("/ui/summary", s.secured(s.requireActive(s.handleSummaryPartial)))
	mux.HandleFunc("/budgets", s.secured(s.requireActive(s.handleCreateBudget)))
	mux.HandleFunc("/budgets/update", s.secured(s.requireActive(s.handleUpdateBudget)))
	mux.HandleFunc("/budgets/delete", s.secured(s.requireActive(s.handleDeleteBudget)))
	mux.HandleFunc("/transactions", s.secured(s.requireActive(s.handleCreateTransaction)))
	mux.HandleFunc("/transactions/update", s.secured(s.requireActive(s.handleUpdateTransaction)))
	mux.HandleFunc("/transactions/delete", s.secured(s.requireActive(s.handleDeleteTransaction)))
	mux.HandleFunc("/ui/recurring", s.secured(s.requireActive(s.handleRecurringList)))
	mux.HandleFunc("/recurring", s.secured(s.requireActive(s.handleCreateRecurringRule)))
	mux.HandleFunc("/recurring/delete", s.secured(s.requireActive(s.handleDeleteRecurringRule)))

	return s
}

// Shutdown stops the listener and the background goroutines exactly once.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.stop()
		s.views.closeAll()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// secured adds security headers, rate limiting and request logging.
func (s *Server) secured(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		clientIP := extractClientIP(r)
		requestID := generateRequestID()

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		r = r.WithContext(ctx)

		if detectSuspiciousRequest(r, s.metrics) {
			slog.WarnContext(ctx, "Suspicious request", "request_id", requestID,
				"client_ip", clientIP, "path", r.URL.Path)
		}

		if r.Method == http.MethodPost && !s.rateLimiter.allow(clientIP, s.metrics) {
			slog.WarnContext(ctx, "Rate limit exceeded", "client_ip", clientIP, "path", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self' https://unpkg.com 'unsafe-eval'; style-src 'self' 'unsafe-inline'; img-src 'self' data:; connect-src 'self'")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		slog.InfoContext(ctx, "Request completed",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rw.statusCode,
			"duration_ms", time.Since(start).Milliseconds(),
			"client_ip", clientIP)
	}
}

// requireUser rejects requests without a valid session token.
func (s *Server) requireUser(next func(http.ResponseWriter, *http.Request, core.User)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := s.currentUser(r)
		if !ok {
			redirectOrDeny(w, r, "/login")
			return
		}
		next(w, r, user)
	}
}

// requireActive additionally needs a selected house; the handler gets the
// user's live view for it.
func (s *Server) requireActive(next func(http.ResponseWriter, *http.Request, *viewmodel.View)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := s.currentUser(r)
		if !ok {
			redirectOrDeny(w, r, "/login")
			return
		}
		houseID := s.currentHouse(r)
		if houseID == "" {
			redirectOrDeny(w, r, "/house")
			return
		}
		view, err := s.views.get(user, houseID)
		if err != nil {
			slog.ErrorContext(r.Context(), "View attach failed", "error", err, "house_id", houseID)
			InternalServerError("Could not load house data").Write(w)
			return
		}
		next(w, r, view)
	}
}

func (s *Server) currentUser(r *http.Request) (core.User, bool) {
	c, err := r.Cookie(sessionCookie)
	if err != nil || c.Value == "" {
		return core.User{}, false
	}
	user, err := s.provider.VerifyToken(c.Value)
	if err != nil {
		return core.User{}, false
	}
	return user, true
}

func (s *Server) currentHouse(r *http.Request) string {
	c, err := r.Cookie(houseCookie)
	if err != nil {
		return ""
	}
	return c.Value
}

// redirectOrDeny redirects full page loads and 401s HTMX partials.
func redirectOrDeny(w http.ResponseWriter, r *http.Request, target string) {
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", target)
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	logger := applog.FromContext(r.Context())
	if s.templates == nil {
		logger.Error("Templates not loaded", "template", name)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		logger.Error("Template execution failed", applog.FieldError, err, "template", name)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
