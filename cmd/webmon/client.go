package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/web_mon/internal/config"
	"github.com/eliteGoblin/focusd/web_mon/internal/domain"
	"github.com/eliteGoblin/focusd/web_mon/internal/infra"
	"github.com/eliteGoblin/focusd/web_mon/internal/usecase"
)

// daemonClient talks to a running daemon's loopback API.
type daemonClient struct {
	base string
	http *http.Client
}

type healthResponse struct {
	Status          string `json:"status"`
	BridgeConnected bool   `json:"bridge_connected"`
}

func newDaemonClient(addr string) *daemonClient {
	return &daemonClient{
		base: "http://" + addr,
		http: &http.Client{Timeout: 5 * time.Second},
	}
}

func (c *daemonClient) health(ctx context.Context) (*healthResponse, error) {
	var out healthResponse
	if err := c.call(ctx, http.MethodGet, "/healthz", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *daemonClient) settings(ctx context.Context) (*domain.FocusConfiguration, error) {
	var out domain.FocusConfiguration
	if err := c.call(ctx, http.MethodGet, "/api/v1/settings", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *daemonClient) patchSettings(ctx context.Context, p usecase.SettingsPatch) error {
	return c.call(ctx, http.MethodPatch, "/api/v1/settings", p, nil)
}

func (c *daemonClient) resetSession(ctx context.Context) error {
	return c.call(ctx, http.MethodPost, "/api/v1/settings/reset-session", nil, nil)
}

func (c *daemonClient) call(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("daemon unreachable: %w", err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if res.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			return fmt.Errorf("daemon: %s", e.Error)
		}
		return fmt.Errorf("daemon: HTTP %d", res.StatusCode)
	}
	if out != nil && len(data) > 0 {
		return json.Unmarshal(data, out)
	}
	return nil
}

// registeredDaemon reads the registry row from the store.
func registeredDaemon(cfg *config.Config) (*domain.Daemon, error) {
	store, err := infra.OpenStore(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	defer store.Close()
	return store.Get(context.Background())
}

const pidReuseSlack = time.Minute

// liveDaemon returns a client for the running daemon, nil when none is running.
func liveDaemon() *daemonClient {
	cfg, err := loadConfig()
	if err != nil {
		return nil
	}
	reg, err := registeredDaemon(cfg)
	if err != nil || reg == nil {
		return nil
	}
	if !daemonAlive(infra.NewProcessManager(), reg) {
		return nil
	}
	return newDaemonClient(reg.Addr)
}

// daemonAlive reports whether the registered PID is still the daemon that
// registered. A process started well after the registration reuses the PID.
func daemonAlive(pm *infra.ProcessManagerImpl, reg *domain.Daemon) bool {
	if !pm.IsRunning(reg.PID) {
		return false
	}
	started, ok := pm.StartTime(reg.PID)
	if !ok || reg.StartedAt.IsZero() {
		return true
	}
	return !started.After(reg.StartedAt.Add(pidReuseSlack))
}

// withSettings opens the store and runs fn with a bootstrapped settings service.
func withSettings(ctx context.Context, fn func(svc *usecase.SettingsService) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := infra.OpenStore(cfg.DataDir)
	if err != nil {
		return err
	}
	defer store.Close()

	svc := usecase.NewSettingsService(store, zap.NewNop())
	if _, err := svc.Bootstrap(ctx); err != nil {
		return err
	}
	return fn(svc)
}

// currentSettings reads the unredacted configuration straight from the store.
func currentSettings(ctx context.Context) (*domain.FocusConfiguration, error) {
	var out *domain.FocusConfiguration
	err := withSettings(ctx, func(svc *usecase.SettingsService) error {
		fc, err := svc.Current(ctx)
		out = fc
		return err
	})
	return out, err
}

func sortedGroupNames(groups map[string]domain.BlockGroup) []string {
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
