// Package daemon runs the webmon daemon: it wires the classification and
// enforcement components, serves the loopback API and keeps the registry current.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/web_mon/internal/classifier"
	"github.com/eliteGoblin/focusd/web_mon/internal/config"
	"github.com/eliteGoblin/focusd/web_mon/internal/domain"
	"github.com/eliteGoblin/focusd/web_mon/internal/infra"
	"github.com/eliteGoblin/focusd/web_mon/internal/server"
	"github.com/eliteGoblin/focusd/web_mon/internal/usecase"
)

// ErrAlreadyRunning is returned when another live daemon is registered.
var ErrAlreadyRunning = errors.New("webmon daemon already running")

// alarmTimeout bounds the work done when a block alarm fires.
const alarmTimeout = 30 * time.Second

// Store is everything the daemon persists.
type Store interface {
	domain.ConfigStore
	domain.DaemonRegistry
}

// Daemon is the long-running webmon process.
type Daemon struct {
	cfg       *config.Config
	store     Store
	pm        domain.ProcessManager
	version   string
	logger    *zap.Logger
	ready     chan string
	scheduler *infra.TimerScheduler
}

// New creates a daemon over an opened store.
func New(cfg *config.Config, store Store, pm domain.ProcessManager, version string, logger *zap.Logger) *Daemon {
	return &Daemon{
		cfg:     cfg,
		store:   store,
		pm:      pm,
		version: version,
		logger:  logger,
		ready:   make(chan string, 1),
	}
}

// Ready yields the bound API address once the daemon is serving.
func (d *Daemon) Ready() <-chan string {
	return d.ready
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.checkSingleInstance(ctx); err != nil {
		return err
	}

	deps, err := d.wire(ctx)
	if err != nil {
		return err
	}
	defer d.scheduler.Stop()

	srv := server.New(d.cfg.ListenAddr, deps)
	if err := srv.Listen(); err != nil {
		return fmt.Errorf("failed to listen on %s: %w", d.cfg.ListenAddr, err)
	}

	self := domain.Daemon{
		PID:        d.pm.GetCurrentPID(),
		StartedAt:  deps.StartTime,
		Addr:       srv.Addr(),
		AppVersion: d.version,
	}
	if err := d.store.Register(ctx, self); err != nil {
		d.logger.Error("failed to register daemon", zap.Error(err))
		return err
	}
	defer func() {
		if err := d.store.Clear(context.Background()); err != nil {
			d.logger.Warn("failed to clear registration", zap.Error(err))
		}
	}()

	d.logger.Info("webmon daemon started",
		zap.Int("pid", self.PID),
		zap.String("addr", self.Addr),
		zap.String("version", d.version))

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve() }()
	d.ready <- self.Addr

	select {
	case <-ctx.Done():
		d.logger.Info("webmon daemon stopping")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), d.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		d.logger.Warn("graceful shutdown incomplete", zap.Error(err))
	}
	return nil
}

// checkSingleInstance refuses to start next to a live daemon. A stale
// registration (crashed process) is overwritten.
func (d *Daemon) checkSingleInstance(ctx context.Context) error {
	existing, err := d.store.Get(ctx)
	if err != nil {
		return fmt.Errorf("failed to read registry: %w", err)
	}
	if existing == nil || existing.PID == d.pm.GetCurrentPID() {
		return nil
	}
	if d.pm.IsRunning(existing.PID) {
		return fmt.Errorf("%w (pid %d, %s)", ErrAlreadyRunning, existing.PID, existing.Addr)
	}
	d.logger.Info("replacing stale registration", zap.Int("stale_pid", existing.PID))
	return nil
}

// wire builds the component graph.
func (d *Daemon) wire(ctx context.Context) (server.Deps, error) {
	logger := d.logger

	settings := usecase.NewSettingsService(d.store, logger.Named("settings"))
	if _, err := settings.Bootstrap(ctx); err != nil {
		return server.Deps{}, fmt.Errorf("failed to bootstrap configuration: %w", err)
	}

	bridge := infra.NewBridge(d.cfg.PageInfoTimeout, logger.Named("bridge"))

	gemini := infra.NewGeminiClient(infra.GeminiClientConfig{
		BaseURL: d.cfg.GeminiBaseURL,
		Timeout: d.cfg.AITimeout,
	}, logger.Named("gemini"))
	resolver := infra.NewModelResolver(d.store, gemini, logger.Named("models"))
	ai := infra.NewGeminiClassifier(gemini, resolver, logger.Named("ai"))

	var fetcher domain.PageFetcher
	if d.cfg.FetchDescriptions {
		fetcher = infra.NewHTMLPageFetcher(&http.Client{Timeout: d.cfg.PageInfoTimeout})
	}

	topic := usecase.NewClassifier(ai, bridge, fetcher,
		classifier.NewTTLCache[domain.Classification](classifier.TopicCacheTTL),
		logger.Named("classifier"))

	d.scheduler = infra.NewTimerScheduler(logger.Named("scheduler"))
	machine := usecase.NewBlockMachine(d.scheduler, bridge, bridge, settings, d.cfg.BlockedPageURL, logger.Named("block"))
	d.scheduler.SetHandler(func(rec domain.AlarmRecord) {
		fireCtx, cancel := context.WithTimeout(context.Background(), alarmTimeout)
		defer cancel()
		if err := machine.Fire(fireCtx, rec); err != nil {
			logger.Error("alarm failed",
				zap.String("stage", string(rec.Stage)),
				zap.Int("tab_id", rec.Key.TabID),
				zap.Error(err))
		}
	})

	messages := usecase.NewMessageHandler(settings, topic, ai,
		classifier.NewTTLCache[domain.ClassificationPayload](classifier.LegacyCacheTTL),
		bridge, bridge, machine, logger.Named("messages"))

	// One full fallback chain plus page info fits in a classification.
	classifyTimeout := d.cfg.AITimeout*time.Duration(len(infra.EndpointChain(""))+1) + d.cfg.PageInfoTimeout

	return server.Deps{
		Logger:          logger.Named("http"),
		StartTime:       time.Now(),
		Version:         d.version,
		Settings:        settings,
		Enforcer:        usecase.NewEnforcer(settings, bridge, d.cfg.BlockedPageURL, logger.Named("enforcer")),
		Messages:        messages,
		Hub:             bridge,
		ClassifyTimeout: classifyTimeout,
	}, nil
}

