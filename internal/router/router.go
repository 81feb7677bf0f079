package router

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
	"github.com/tillpoint/pos-api/internal/auth"
	"github.com/tillpoint/pos-api/internal/config"
	"github.com/tillpoint/pos-api/internal/database"
	"github.com/tillpoint/pos-api/internal/enum"
	"github.com/tillpoint/pos-api/internal/handler"
	mw "github.com/tillpoint/pos-api/internal/middleware"
	"github.com/tillpoint/pos-api/internal/service"
	"github.com/tillpoint/pos-api/internal/ws"
)

// New creates a Chi router with all application routes wired up.
// The login rate limiter's cleanup loop stops when ctx is done.
func New(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool, hub *ws.Hub, logger *logrus.Logger) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	// RealIP is left out: forwarded headers are client-controlled and the
	// login limiter keys on the peer address.
	r.Use(middleware.RequestID)
	r.Use(mw.RequestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	queries := database.New(pool)
	verifier := auth.NewBcryptVerifier(cfg.BcryptCost)

	staffService := service.NewStaffService(pool, queries,
		func(db database.DBTX) service.StaffStore { return database.New(db) },
		verifier, hub, logger)
	taxRateService := service.NewTaxRateService(pool, queries,
		func(db database.DBTX) service.TaxRateStore { return database.New(db) },
		logger)
	orderService := service.NewOrderService(pool, queries,
		func(db database.DBTX) service.OrderStore { return database.New(db) },
		hub, logger)

	// Public routes
	r.Get("/health", healthHandler(pool))

	// WebSocket route (handles auth internally via query param)
	r.Get("/ws/{topic}", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, cfg.JWTSecret, staffService, w, r)
	})

	loginLimiter := mw.NewIPRateLimiter(mw.RateLimiterConfig{
		RequestsPerMinute: cfg.LoginRatePerMinute,
		BurstSize:         cfg.LoginBurst,
	})
	go func() {
		<-ctx.Done()
		loginLimiter.Stop()
	}()

	staffHandler := handler.NewStaffHandler(staffService, cfg.JWTSecret, cfg.AccessTokenTTL, logger)
	taxRateHandler := handler.NewTaxRateHandler(taxRateService, logger)
	orderHandler := handler.NewOrderHandler(orderService, logger)

	r.Route("/api", func(r chi.Router) {
		r.Route("/staff", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(loginLimiter.Middleware)
				staffHandler.RegisterLoginRoute(r)
			})

			// Protected routes (require authentication)
			r.Group(func(r chi.Router) {
				r.Use(mw.Authenticate(cfg.JWTSecret, staffService))
				staffHandler.RegisterSessionRoutes(r)

				r.Group(func(r chi.Router) {
					r.Use(mw.RequireRole(enum.StaffRoleManager, enum.StaffRoleAdmin))
					staffHandler.RegisterManagementRoutes(r)
				})
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(mw.Authenticate(cfg.JWTSecret, staffService))
			r.Route("/tax-rates", taxRateHandler.RegisterRoutes)
			r.Route("/orders", orderHandler.RegisterRoutes)
		})
	})

	logger.Info("router initialized with all handlers")
	return r
}

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

func healthHandler(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := db.Ping(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unavailable","database":"down"}`))
			return
		}
		w.Write([]byte(`{"status":"ok","database":"up"}`))
	}
}
