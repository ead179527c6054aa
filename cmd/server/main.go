package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/estimate-app/backend/internal/config"
	"github.com/estimate-app/backend/internal/handler"
	"github.com/estimate-app/backend/internal/logging"
	"github.com/estimate-app/backend/internal/repository"
	"github.com/estimate-app/backend/internal/service"
	"github.com/estimate-app/backend/pkg/auth"
)

// store bundles the repositories for one storage driver.
type store struct {
	db        repository.DB
	estimates repository.EstimateRepository
	templates repository.TemplateRepository
	close     func()
}

func openStore(ctx context.Context, cfg config.DatabaseConfig) (*store, error) {
	if cfg.Driver == config.StoreMemory {
		mem := repository.NewMemStore()
		return &store{db: mem, estimates: mem.Estimates, templates: mem.Templates, close: func() {}}, nil
	}
	pool, err := repository.NewPool(ctx, cfg.URL)
	if err != nil {
		return nil, err
	}
	return &store{
		db:        pool,
		estimates: repository.NewPgEstimateRepository(pool),
		templates: repository.NewPgTemplateRepository(pool),
		close:     pool.Close,
	}, nil
}

// routes builds the API mux. wrapAuth guards every owner route; the share
// route is anonymous and goes through shareLimiter instead.
func routes(st *store, cfg *config.Config, wrapAuth func(http.Handler) http.Handler, shareLimiter *handler.RateLimiter) http.Handler {
	estimateService := service.NewEstimateService(st.estimates, st.templates, cfg.App.OveragePolicy)
	templateService := service.NewTemplateService(st.templates)

	h := handler.New(st.db, cfg.Server.FrontendURL)
	estimateHandler := handler.NewEstimateHandler(estimateService)
	templateHandler := handler.NewTemplateHandler(templateService)
	shareHandler := handler.NewShareHandler(estimateService)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", h.Health)

	// 共有リンク（認証不要・レート制限あり）
	mux.Handle("GET /api/share/{token}", shareLimiter.Middleware(http.HandlerFunc(shareHandler.Get)))

	// 見積もり
	mux.Handle("GET /api/me/estimates", wrapAuth(http.HandlerFunc(estimateHandler.ListMine)))
	mux.Handle("POST /api/estimates", wrapAuth(http.HandlerFunc(estimateHandler.Create)))
	mux.Handle("GET /api/estimates/{id}", wrapAuth(http.HandlerFunc(estimateHandler.Get)))
	mux.Handle("PATCH /api/estimates/{id}", wrapAuth(http.HandlerFunc(estimateHandler.UpdateDetails)))
	mux.Handle("PUT /api/estimates/{id}/line-items", wrapAuth(http.HandlerFunc(estimateHandler.ReplaceLineItems)))
	mux.Handle("PATCH /api/estimates/{id}/policy", wrapAuth(http.HandlerFunc(estimateHandler.UpdatePolicy)))
	mux.Handle("POST /api/estimates/{id}/revisions", wrapAuth(http.HandlerFunc(estimateHandler.ConsumeRevision)))

	// テンプレート
	mux.Handle("GET /api/templates", wrapAuth(http.HandlerFunc(templateHandler.List)))
	mux.Handle("GET /api/templates/{kind}/{id}/draft", wrapAuth(http.HandlerFunc(templateHandler.Draft)))
	mux.Handle("POST /api/me/templates", wrapAuth(http.HandlerFunc(templateHandler.Create)))
	mux.Handle("PUT /api/me/templates/{id}", wrapAuth(http.HandlerFunc(templateHandler.Update)))
	mux.Handle("DELETE /api/me/templates/{id}", wrapAuth(http.HandlerFunc(templateHandler.Delete)))

	return handler.RequestLogger(handler.SecurityHeaders(h.CORS(mux)))
}

func authMiddleware(cfg config.AuthConfig) func(http.Handler) http.Handler {
	if cfg.Required {
		return auth.RequireAuth(auth.NewVerifier(cfg.JWTSecret))
	}
	slog.Warn("AUTH_REQUIRED is not true; all requests run as the dev user", "user_id", auth.DevUserID)
	return auth.DevAuth
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		// ロガー設定前なのでデフォルトで出力
		logging.Fatal("invalid configuration", "error", err)
	}
	logging.Setup(cfg.App.LogLevel)

	st, err := openStore(context.Background(), cfg.Database)
	if err != nil {
		logging.Fatal("failed to open storage", "driver", cfg.Database.Driver, "error", err)
	}
	defer st.close()

	shareLimiter := handler.NewRateLimiter(cfg.Server.ShareRateLimitPerMinute)
	defer shareLimiter.Stop()

	server := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           routes(st, cfg, authMiddleware(cfg.Auth), shareLimiter),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("server listening", "addr", server.Addr, "store", cfg.Database.Driver, "overage_policy", cfg.App.OveragePolicy)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal("server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}
