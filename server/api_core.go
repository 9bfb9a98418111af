package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// dataStore is what the handlers need from persistence. *Store implements it.
type dataStore interface {
	Ping(ctx context.Context) error

	CreateUser(ctx context.Context, u User, passwordHash string) (User, error)
	Authenticate(ctx context.Context, email, password string) (User, error)
	UserByEmail(ctx context.Context, email string) (User, error)
	GetUser(ctx context.Context, id string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)

	Disciples(ctx context.Context, disciplerID string) ([]User, error)
	Discipler(ctx context.Context, discipleID string) (User, error)
	CreateDiscipleship(ctx context.Context, disciplerID, discipleID string) (Discipleship, error)

	ListBoards(ctx context.Context, userID string) ([]BoardSummary, error)
	CreateBoard(ctx context.Context, userID, title string) (Board, error)
	BoardOwner(ctx context.Context, boardID string) (string, error)
	StagesByBoard(ctx context.Context, boardID string) ([]Stage, error)
	ItemRowsByBoard(ctx context.Context, boardID string) ([]ItemRow, error)
	CreateStage(ctx context.Context, boardID, id, title string) (Stage, error)
	DeleteStage(ctx context.Context, boardID, stageID string) error

	ItemOwner(ctx context.Context, boardID, itemID string) (string, error)
	CreateItem(ctx context.Context, boardID string, it Item) (Item, error)
	UpdateItem(ctx context.Context, boardID, itemID string, it Item) (Item, error)
	DeleteItem(ctx context.Context, boardID, itemID string) error
}

type api struct {
	cfg     Config
	store   dataStore
	tokens  *tokenIssuer
	limiter rateLimiter
	metrics *metrics
	log     *slog.Logger
}

func newAPI(cfg Config, store dataStore, limiter rateLimiter, log *slog.Logger) *api {
	if limiter == nil {
		limiter = newMemoryLimiter()
	}
	return &api{
		cfg:     cfg,
		store:   store,
		tokens:  newTokenIssuer(cfg.JWTSecret, cfg.AccessTokenTTL),
		limiter: limiter,
		metrics: newMetrics(),
		log:     log,
	}
}

func (a *api) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(a.withLogging)
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   a.cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", a.handleHealth)
	r.Handle("/metrics", a.metrics.handler())

	r.Route("/auth", func(r chi.Router) {
		r.Post("/signup", a.withRateLimit("signup", 20, time.Minute, a.handleSignup))
		r.Post("/login", a.withRateLimit("login", 30, time.Minute, a.handleLogin))
		r.With(a.requireAuth).Get("/me", a.handleMe)
	})

	r.Route("/boards", func(r chi.Router) {
		r.Use(a.requireAuth)
		r.Get("/", a.handleListBoards)
		r.Post("/", a.handleCreateBoard)
		r.Get("/{id}", a.handleGetBoard)
		r.Post("/{id}/stages", a.handleCreateStage)
		r.Delete("/{id}/stages/{stageID}", a.handleDeleteStage)
		r.Post("/{id}/items", a.handleCreateItem)
		r.Put("/{id}/items/{itemID}", a.handleUpdateItem)
		r.Delete("/{id}/items/{itemID}", a.handleDeleteItem)
	})

	r.Route("/users", func(r chi.Router) {
		r.Use(a.requireAuth)
		r.Get("/opposite-role", a.handleOppositeRole)
		r.Get("/suggested-matches", a.handleSuggestedMatches)
		r.Post("/discipleship", a.handleCreateDiscipleship)
		r.Get("/discipler/{id}/disciples", a.handleDisciples)
		r.Get("/disciple/{id}/discipler", a.handleDiscipler)
		r.Get("/{id}", a.handleGetUser)
		r.Get("/{id}/boards", a.handleUserBoards)
	})
	return r
}

func (a *api) withRateLimit(name string, max int, window time.Duration, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ok, err := a.limiter.Allow(r.Context(), a.clientIP(r)+":"+name, max, window)
		if err != nil {
			// fail open
			a.log.Warn("rate limit", "err", err)
			ok = true
		}
		if !ok {
			writeError(w, 429, "too many requests")
			return
		}
		next(w, r)
	}
}

// clientIP is the socket peer. X-Real-IP and X-Forwarded-For are believed
// only when that peer is one of the configured trusted proxies; for
// X-Forwarded-For the rightmost address not itself a trusted proxy wins.
func (a *api) clientIP(r *http.Request) string {
	peer := r.RemoteAddr
	if host, _, err := net.SplitHostPort(peer); err == nil {
		peer = host
	}
	if !a.trustedProxy(peer) {
		return peer
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			if _, err := netip.ParseAddr(hop); err != nil {
				break
			}
			if !a.trustedProxy(hop) {
				return hop
			}
		}
	}
	if xrip := strings.TrimSpace(r.Header.Get("X-Real-IP")); xrip != "" {
		if _, err := netip.ParseAddr(xrip); err == nil {
			return xrip
		}
	}
	return peer
}

func (a *api) trustedProxy(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range a.cfg.TrustedProxies {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

func readJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, r.Body)
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(true)
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"ok": false, "error": msg})
}

// writeStoreError maps store sentinels to responses. Anything unrecognised is
// logged under op and reported as a 500.
func (a *api) writeStoreError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		writeError(w, 404, "not found")
	case errors.Is(err, ErrForbidden):
		writeError(w, 403, "forbidden")
	case errors.Is(err, ErrConflict):
		writeError(w, 409, "already exists")
	case errors.Is(err, ErrInvalidCredentials):
		writeError(w, 401, "invalid credentials")
	default:
		a.log.Error(op, "err", err, "data_integrity", errors.Is(err, ErrDataIntegrity))
		writeError(w, 500, "internal error")
	}
}

type userKey struct{}

func currentUser(ctx context.Context) (User, bool) {
	u, ok := ctx.Value(userKey{}).(User)
	return u, ok
}

// requireAuth accepts a bearer token whose subject still resolves to the user
// it was issued for.
func (a *api) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := bearerToken(r.Header.Get("Authorization"))
		if raw == "" {
			writeError(w, 401, "not authenticated")
			return
		}
		claims, err := a.tokens.Parse(raw)
		if err != nil {
			writeError(w, 401, "could not validate credentials")
			return
		}
		u, err := a.store.UserByEmail(r.Context(), claims.Subject)
		if errors.Is(err, ErrNotFound) || (err == nil && u.ID != claims.UserID) {
			writeError(w, 401, "could not validate credentials")
			return
		}
		if err != nil {
			a.writeStoreError(w, "auth lookup", err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey{}, u)))
	})
}

// authorizeBoard writes the error response and returns false unless the
// caller owns boardID.
func (a *api) authorizeBoard(w http.ResponseWriter, r *http.Request, boardID string) bool {
	u, _ := currentUser(r.Context())
	owner, err := a.store.BoardOwner(r.Context(), boardID)
	if err != nil {
		a.writeStoreError(w, "board owner", err)
		return false
	}
	if owner != u.ID {
		writeError(w, 403, "forbidden")
		return false
	}
	return true
}

func (a *api) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		status := ww.Status()
		if status == 0 {
			status = 200
		}
		took := time.Since(start)
		a.metrics.observe(r, status, took)
		a.log.Info("http", "method", r.Method, "route", routePattern(r), "path", r.URL.Path,
			"status", status, "dur_ms", took.Milliseconds(), "req_id", middleware.GetReqID(r.Context()))
	})
}
