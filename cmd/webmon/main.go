// Package main is the CLI entry point for webmon.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/eliteGoblin/focusd/web_mon/internal/classifier"
	"github.com/eliteGoblin/focusd/web_mon/internal/config"
	"github.com/eliteGoblin/focusd/web_mon/internal/daemon"
	"github.com/eliteGoblin/focusd/web_mon/internal/domain"
	"github.com/eliteGoblin/focusd/web_mon/internal/infra"
	"github.com/eliteGoblin/focusd/web_mon/internal/policy"
	"github.com/eliteGoblin/focusd/web_mon/internal/usecase"
)

var (
	// Version info (set via ldflags)
	Version   = "0.1.0"
	Commit    = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "webmon",
	Short: "Web monitor - keeps browsing on your focus topic",
	Long: `webmon is a local daemon behind the MindGard browser extension.
It blocks distracting sites in manual mode, and in AI mode classifies every
page against your focus topic, warning and then blocking off-topic pages.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the daemon in the foreground",
	Long:  `Runs the webmon daemon and its loopback API until interrupted.`,
	RunE:  runServe,
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the daemon in the background",
	RunE:  runStart,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check daemon status",
	Long:  `Shows whether the daemon is running, whether the extension is connected and the active focus mode.`,
	RunE:  runStatus,
}

var checkCmd = &cobra.Command{
	Use:   "check <url>",
	Short: "Show the manual-mode decision for a URL",
	Args:  cobra.ExactArgs(1),
	RunE:  runCheck,
}

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Classify a page against the focus topic",
	Long: `Runs the classification pipeline once: hardcoded rules first, then the
Gemini API with the stored key. Nothing is blocked.`,
	RunE: runClassify,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change the focus configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the configuration (API key masked)",
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change one setting",
	Long: `Changes one setting. Keys: focusMode (manual|ai), currentFocusTopic,
geminiApiKey, aiBlockingEnabled, warnMinutes, hardBlockMinutes.
When the daemon is running the change goes through its API.`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var resetSessionCmd = &cobra.Command{
	Use:   "reset-session",
	Short: "Unblock every page blocked for this session",
	RunE:  runResetSession,
}

var blocklistCmd = &cobra.Command{
	Use:   "blocklist",
	Short: "List blocked domains by group",
	RunE:  runBlocklist,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Prints version, commit, and build time. Use --json for machine-readable output.`,
	Run:   runVersion,
}

var (
	prettyLog   bool
	jsonOutput  bool
	pageTitle   string
	pageURL     string
	pageDesc    string
	pageTopic   string
	envFilePath string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&envFilePath, "env-file", "", "Load settings from this .env file")
	serveCmd.Flags().BoolVar(&prettyLog, "pretty", false, "Human-readable logs on stderr")
	versionCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")
	classifyCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the classification as JSON")

	classifyCmd.Flags().StringVar(&pageURL, "url", "", "Page URL")
	classifyCmd.Flags().StringVar(&pageTitle, "title", "", "Page title")
	classifyCmd.Flags().StringVar(&pageDesc, "description", "", "Page description")
	classifyCmd.Flags().StringVar(&pageTopic, "topic", "", "Focus topic (defaults to the stored one)")
	_ = classifyCmd.MarkFlagRequired("url")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(resetSessionCmd)
	rootCmd.AddCommand(blocklistCmd)
	rootCmd.AddCommand(versionCmd)
}

func loadConfig() (*config.Config, error) {
	if envFilePath != "" {
		return config.LoadFile(envFilePath)
	}
	return config.Load(), nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if prettyLog {
		cfg.PrettyLog = true
	}

	logger := createLogger(cfg)
	defer func() { _ = logger.Sync() }()

	store, err := infra.OpenStore(cfg.DataDir)
	if err != nil {
		logger.Error("failed to open store", zap.Error(err))
		return err
	}
	defer store.Close()

	// Set up graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("received shutdown signal")
		cancel()
	}()

	d := daemon.New(cfg, store, infra.NewProcessManager(), Version, logger)
	err = d.Run(ctx)
	if errors.Is(err, daemon.ErrAlreadyRunning) {
		fmt.Println(err)
		return nil
	}
	return err
}

func runStart(cmd *cobra.Command, args []string) error {
	var extra []string
	if envFilePath != "" {
		extra = append(extra, "--env-file", envFilePath)
	}
	pid, err := daemon.StartDetached(extra...)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	// Wait a moment for the daemon to register
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if reg, _ := registeredDaemon(cfg); reg != nil && reg.PID == pid {
			fmt.Printf("webmon started (pid %d, listening on %s)\n", pid, reg.Addr)
			return nil
		}
		time.Sleep(200 * time.Millisecond)
	}
	fmt.Printf("webmon spawned (pid %d); run 'webmon status' to confirm\n", pid)
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	fmt.Println("\n=== webmon Status ===")

	reg, err := registeredDaemon(cfg)
	if err != nil || reg == nil {
		fmt.Println("Status: NOT RUNNING")
		fmt.Println("\nRun 'webmon start' to enable protection.")
		return nil
	}
	if !daemonAlive(infra.NewProcessManager(), reg) {
		fmt.Println("Status: NOT RUNNING (stale registration)")
		return nil
	}

	fmt.Println("Status: RUNNING")
	fmt.Printf("PID: %d\n", reg.PID)
	fmt.Printf("API: http://%s\n", reg.Addr)
	fmt.Printf("Version: %s\n", reg.AppVersion)
	if !reg.StartedAt.IsZero() {
		fmt.Printf("Uptime: %s\n", time.Since(reg.StartedAt).Round(time.Second))
	}

	client := newDaemonClient(reg.Addr)
	if health, err := client.health(cmd.Context()); err == nil {
		if health.BridgeConnected {
			fmt.Println("Extension: connected")
		} else {
			fmt.Println("Extension: not connected")
		}
	}

	if fc, err := client.settings(cmd.Context()); err == nil {
		fmt.Printf("\nFocus mode: %s\n", fc.FocusMode)
		if fc.FocusMode == domain.ModeAI {
			fmt.Printf("Focus topic: %s\n", fc.CurrentFocusTopic)
		}
		fmt.Printf("Blocked domains: %d\n", len(policy.MergeBlockedDomains(fc.BlockedGroups)))
		fmt.Printf("Session-blocked pages: %d\n", len(fc.SessionBlocked))
	}

	fmt.Println("=====================")
	return nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	fc, err := currentSettings(cmd.Context())
	if err != nil {
		return err
	}

	url := args[0]
	if fc.IsSessionBlocked(url) {
		fmt.Printf("%s: %s\n", url, usecase.DecisionSessionBlocked)
		return nil
	}
	fmt.Printf("%s: %s\n", url, usecase.Evaluate(fc, url))
	if fc.FocusMode != domain.ModeManual {
		fmt.Println("(focus mode is ai: domain blocking is not enforced)")
	}
	return nil
}

func runClassify(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	fc, err := currentSettings(cmd.Context())
	if err != nil {
		return err
	}

	logger := zap.NewNop()
	gemini := infra.NewGeminiClient(infra.GeminiClientConfig{
		BaseURL: cfg.GeminiBaseURL,
		Timeout: cfg.AITimeout,
	}, logger)
	ai := infra.NewGeminiClassifier(gemini, infra.NewModelResolver(nil, gemini, logger), logger)

	var fetcher domain.PageFetcher
	if cfg.FetchDescriptions {
		fetcher = infra.NewHTMLPageFetcher(nil)
	}
	c := usecase.NewClassifier(ai, nil, fetcher,
		classifier.NewTTLCache[domain.Classification](classifier.TopicCacheTTL), logger)

	topic := pageTopic
	if topic == "" {
		topic = fc.CurrentFocusTopic
	}
	result := c.GetClassification(cmd.Context(), domain.ClassifyRequest{
		Page:   domain.PageRequest{URL: pageURL, Title: pageTitle, Description: pageDesc},
		Topic:  topic,
		APIKey: fc.GeminiAPIKey,
	})

	if jsonOutput {
		return printJSON(result)
	}
	fmt.Printf("Topic:   %s\nVerdict: %s\nReason:  %s\n", topic, result.Verdict, result.Reason)
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	fc, err := currentSettings(cmd.Context())
	if err != nil {
		return err
	}
	return printJSON(usecase.Redacted(fc))
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	patch, err := usecase.ParseSetting(args[0], args[1])
	if err != nil {
		return err
	}

	if client := liveDaemon(); client != nil {
		if err := client.patchSettings(cmd.Context(), patch); err != nil {
			return err
		}
	} else {
		err := withSettings(cmd.Context(), func(svc *usecase.SettingsService) error {
			_, err := svc.Patch(cmd.Context(), patch)
			return err
		})
		if err != nil {
			return err
		}
	}
	fmt.Printf("%s updated\n", args[0])
	return nil
}

func runResetSession(cmd *cobra.Command, args []string) error {
	if client := liveDaemon(); client != nil {
		if err := client.resetSession(cmd.Context()); err != nil {
			return err
		}
	} else {
		err := withSettings(cmd.Context(), func(svc *usecase.SettingsService) error {
			return svc.ResetSession(cmd.Context())
		})
		if err != nil {
			return err
		}
	}
	fmt.Println("Session blocks cleared")
	return nil
}

func runBlocklist(cmd *cobra.Command, args []string) error {
	fc, err := currentSettings(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Println("\n=== Blocked Domains ===")
	for _, name := range sortedGroupNames(fc.BlockedGroups) {
		g := fc.BlockedGroups[name]
		state := "disabled"
		if g.Enabled {
			state = "enabled"
		}
		fmt.Printf("\n[%s] %s\n", name, state)
		for _, item := range g.Items {
			suffix := ""
			if item.Disabled() {
				suffix = " (off)"
			}
			fmt.Printf("  - %s%s\n", item.Target(), suffix)
		}
	}

	merged := policy.SortedDomains(policy.MergeBlockedDomains(fc.BlockedGroups))
	fmt.Printf("\nEnforced in manual mode: %d domains\n", len(merged))
	if len(merged) > 0 {
		fmt.Printf("  %s\n", strings.Join(merged, ", "))
	}
	fmt.Println("=======================")
	return nil
}

func runVersion(cmd *cobra.Command, args []string) {
	if jsonOutput {
		fmt.Printf(`{"version":"%s","commit":"%s","build_time":"%s"}`+"\n",
			Version, Commit, BuildTime)
	} else {
		fmt.Printf("webmon %s (commit: %s, built: %s)\n",
			Version, Commit, BuildTime)
	}
}

func createLogger(cfg *config.Config) *zap.Logger {
	var zc zap.Config
	if cfg.PrettyLog {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		zc = zap.NewProductionConfig()
		zc.OutputPaths = []string{cfg.LogFile()}
		zc.ErrorOutputPaths = []string{cfg.ErrorLogFile()}
		zc.EncoderConfig.TimeKey = "time"
		zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	if lvl, err := zapcore.ParseLevel(cfg.LogLevel); err == nil {
		zc.Level = zap.NewAtomicLevelAt(lvl)
	}

	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil && !cfg.PrettyLog {
		logger, _ := zap.NewProduction()
		return logger
	}
	logger, err := zc.Build()
	if err != nil {
		// Fallback to stdout if file logging fails
		logger, _ = zap.NewProduction()
	}
	return logger
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
