package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"todo-overlay/internal/config"
	"todo-overlay/internal/localstate"
	"todo-overlay/internal/netmon"
	"todo-overlay/internal/remote"
	"todo-overlay/internal/remote/auth"
	"todo-overlay/internal/storage"
	"todo-overlay/internal/storage/cloud"
	"todo-overlay/internal/storage/local"
)

var (
	cfgFile     string
	modeFlag    string
	logFileFlag string
)

var rootCmd = &cobra.Command{
	Use:   "todo",
	Short: "Personal task manager with local and cloud storage",
	Long: `todo manages tasks, lists and labels against either a local state
file or a synced cloud account. The active backend comes from the config
file (~/.todo-overlay/config.yaml) and can be overridden with --mode.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.todo-overlay/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&modeFlag, "mode", "", "storage mode override: local or cloud")
	rootCmd.PersistentFlags().StringVar(&logFileFlag, "log-file", "", "write logs to a rotating file instead of stderr")
}

// app bundles the wired collaborators for one command invocation.
type app struct {
	cfg      *config.Config
	logger   *log.Logger
	provider storage.Provider

	// localStore is set in local mode; mutations go through its command
	// layer rather than through Provider.Save.
	localStore *localstate.Store

	cancel  context.CancelFunc
	cleanup []func()
}

// newApp loads config, registers both provider constructors and opens
// the provider for the configured mode.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if modeFlag != "" {
		cfg.Mode = modeFlag
	}
	if logFileFlag != "" {
		cfg.Log.File = logFileFlag
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}

	a := &app{cfg: cfg, logger: newLogger(cfg)}
	probeCtx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	storage.Register(storage.ModeLocal, func() (storage.Provider, error) {
		store, err := localstate.Open(cfg.DataDir, a.logger)
		if err != nil {
			return nil, err
		}
		a.localStore = store
		return local.New(store), nil
	})
	storage.Register(storage.ModeCloud, func() (storage.Provider, error) {
		if cfg.Cloud.DSN == "" {
			return nil, fmt.Errorf("cloud mode requires cloud.dsn in %s", config.Path())
		}
		store, err := remote.Open(cfg.Cloud.DSN)
		if err != nil {
			return nil, err
		}
		a.cleanup = append(a.cleanup, func() { store.Close() })

		authClient := auth.NewClient(cfg.Cloud.AuthURL, cfg.Cloud.APIKey, cfg.DataDir)

		probeCfg := netmon.DefaultConfig(cfg.Net.ProbeAddress)
		probeCfg.Interval = cfg.Net.ProbeInterval
		probeCfg.Timeout = cfg.Net.ProbeTimeout
		probeCfg.Logger = a.logger
		probe := netmon.NewProbe(probeCfg)
		probe.Start(probeCtx)
		a.cleanup = append(a.cleanup, probe.Stop)

		cloudCfg := cloud.DefaultConfig(cfg.DataDir)
		cloudCfg.Logger = a.logger
		return cloud.New(store, authClient, probe, cloudCfg), nil
	})

	provider, err := storage.New(storage.Mode(cfg.Mode))
	if err != nil {
		a.close()
		return nil, err
	}
	a.provider = provider

	if err := provider.Initialize(ctx); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) close() {
	if a.provider != nil {
		a.provider.Destroy()
	}
	if a.cancel != nil {
		a.cancel()
	}
	for i := len(a.cleanup) - 1; i >= 0; i-- {
		a.cleanup[i]()
	}
}

// requireLocal returns the local command store or exits.
func (a *app) requireLocal() *localstate.Store {
	if a.localStore == nil {
		fmt.Fprintf(os.Stderr, "Error: this operation needs --mode local\n")
		os.Exit(1)
	}
	return a.localStore
}

// requireCloud returns the provider as a cloud provider or exits.
func (a *app) requireCloud() *cloud.Provider {
	p, ok := a.provider.(*cloud.Provider)
	if !ok {
		fmt.Fprintf(os.Stderr, "Error: this operation needs --mode cloud\n")
		os.Exit(1)
	}
	return p
}

func newLogger(cfg *config.Config) *log.Logger {
	if cfg.Log.File == "" {
		return log.New(os.Stderr, "", log.LstdFlags)
	}
	return log.New(&lumberjack.Logger{
		Filename:   cfg.Log.File,
		MaxSize:    cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
	}, "", log.LstdFlags)
}

// mustApp wires the app or exits with the error.
func mustApp(ctx context.Context) *app {
	a, err := newApp(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return a
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
