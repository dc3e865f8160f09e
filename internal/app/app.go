package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"vhsops/internal/airtable"
	"vhsops/internal/config"
	"vhsops/internal/httpapi"
	"vhsops/internal/metrics"
	"vhsops/internal/store"
	"vhsops/internal/watch"
)

// App wires the data plane components together.
type App struct {
	cfg     config.Config
	log     *zap.SugaredLogger
	store   *store.Store
	svc     *httpapi.Service
	watcher *watch.Watcher
	mux     *http.ServeMux
}

func New(cfg config.Config, log *zap.SugaredLogger) (*App, error) {
	var st *store.Store
	if cfg.DBPath != "" {
		var err error
		st, err = store.Open(cfg.DBPath)
		if err != nil {
			return nil, err
		}
	}

	m := metrics.New()
	client := airtable.New(cfg, log)
	svc := httpapi.NewService(cfg, client, st, m, log)

	// Hot reload merges file overrides onto the env-derived base so a key
	// removed from the file falls back to its env/default name.
	base := cfg.Fields
	watcher := watch.New(cfg.ConfigFile, log, func(fm config.FieldMap) {
		svc.SetFields(config.MergeFields(base, fm))
	})

	mux := http.NewServeMux()
	router := httpapi.NewRouter(cfg, svc, st, m, log)
	router.Register(mux)

	return &App{cfg: cfg, log: log, store: st, svc: svc, watcher: watcher, mux: mux}, nil
}

// Run starts the watcher and HTTP server and blocks until ctx is done.
func (a *App) Run(ctx context.Context) error {
	if err := a.watcher.Start(ctx); err != nil {
		return err
	}
	srv := &http.Server{Addr: ":" + a.cfg.HTTPPort, Handler: a.mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	a.log.Infow("http listening", "port", a.cfg.HTTPPort)
	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		err = nil
	}
	if a.store != nil {
		_ = a.store.Close()
	}
	return err
}

// Service exposes the pipeline service for tests and the control plane.
func (a *App) Service() *httpapi.Service { return a.svc }
func (a *App) Mux() *http.ServeMux       { return a.mux }
