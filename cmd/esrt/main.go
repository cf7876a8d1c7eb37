package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/pkg/profile"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/esengine/microes-sub003/internal/config"
	"github.com/esengine/microes-sub003/internal/core/app"
	"github.com/esengine/microes-sub003/internal/injector"
	"github.com/esengine/microes-sub003/internal/inspect"
	"github.com/esengine/microes-sub003/internal/persist"
	"github.com/esengine/microes-sub003/internal/scene"
	"github.com/esengine/microes-sub003/internal/term"
)

var (
	profileMode = flag.String("profile", "", "profile mode: cpu, mem or trace (overrides [profile] mode)")
	headless    = flag.Bool("headless", false, "run without the terminal host")
)

func main() {
	flag.Parse()
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

func printBanner() {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m          esrt  ·  ECS runtime  v0.1.0     \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
}

func printSection(title string) {
	lineLen := max(46-term.DisplayWidth(title)-1, 3)
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printStat(label string, count int) {
	numStr := fmt.Sprintf("%d", count)
	dotsLen := max(42-term.DisplayWidth(label)-len(numStr), 3)
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dotsLen), numStr)
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

// ── Runtime ───────────────────────────────────────────────────────

func run() error {
	// 1. Load config
	cfgPath := "config/esrt.toml"
	if p := os.Getenv("ESRT_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if errors.Is(err, os.ErrNotExist) {
		cfg = config.Default()
	} else if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if *profileMode != "" {
		cfg.Profile.Mode = *profileMode
	}
	useTerminal := cfg.Terminal.Enabled && !*headless

	// 2. Init logger
	log, err := newLogger(cfg.Logging, useTerminal)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	if p := startProfile(cfg.Profile); p != nil {
		defer p.Stop()
	}

	printBanner()

	// 3. Assemble the runtime
	printSection("runtime")
	rt, cleanup, err := injector.InitRuntime(cfg, log)
	if err != nil {
		return fmt.Errorf("init runtime: %w", err)
	}
	defer cleanup()
	printOK(fmt.Sprintf("fixed step %s, max delta %s", cfg.App.FixedTimestep, cfg.App.MaxDelta))

	// 4. Optional PostgreSQL scene store
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var scenes *persist.SceneRepo
	if cfg.Database.Enabled {
		db, err := persist.NewDB(ctx, cfg.Database, log)
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		defer db.Close()
		if _, err := persist.RunMigrations(ctx, db.Pool, log); err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		scenes = persist.NewSceneRepo(db)
		printOK("PostgreSQL connected, migrations applied")
	}

	// 5. Scripts, then the scene that may use script components
	printSection("preload")
	var loaders []app.Loader
	if cfg.Scripts.Dir != "" {
		loaders = append(loaders, rt.Scripts.Loader(cfg.Scripts.Dir))
	}
	switch {
	case scenes != nil && cfg.Scene.Name != "":
		loaders = append(loaders, scenes.Loader(cfg.Scene.Name))
	case cfg.Scene.Path != "":
		loaders = append(loaders, scene.Loader(cfg.Scene.Path))
	}
	if err := rt.App.Preload(ctx, loaders...); err != nil {
		return fmt.Errorf("preload: %w", err)
	}
	printStat("components", len(rt.App.Registry().Components()))
	printStat("lua systems", len(rt.Scripts.Systems()))
	printStat("entities", rt.App.World().Len())
	fmt.Println()

	// 6. Hosts
	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(runCtx)

	if cfg.Inspector.Enabled {
		srv := inspect.New(rt.App, cfg.Inspector.Interval, log.Named("inspect"))
		g.Go(func() error { return srv.ListenAndServe(gctx, cfg.Inspector.BindAddress) })
		printOK("inspector on ws://" + cfg.Inspector.BindAddress + "/ws")
	}

	var screen tcell.Screen
	if useTerminal {
		screen, err = tcell.NewScreen()
		if err != nil {
			return fmt.Errorf("terminal: %w", err)
		}
		if err := screen.Init(); err != nil {
			return fmt.Errorf("terminal: %w", err)
		}
		defer screen.Fini()

		host := term.New(screen, rt.App, rt.Defs, cfg.Terminal.MaxRows, log.Named("term"))
		if err := host.Install(); err != nil {
			return fmt.Errorf("terminal: %w", err)
		}
		goSafe(screen, func() { host.Listen(gctx) })
	}

	// 7. Main loop
	printReady(fmt.Sprintf("loop started (%d fps)", cfg.App.FrameRate))
	runErr := runLoop(gctx, screen, rt.App)
	stop()
	if err := g.Wait(); err != nil {
		log.Error("host stopped with error", zap.Error(err))
	}
	if runErr != nil {
		return runErr
	}

	// 8. Persist the final scene
	if scenes != nil && cfg.Scene.Name != "" {
		doc, err := scene.Snapshot(rt.App.World(), cfg.Scene.Name, rt.Store.Parent)
		if err != nil {
			return fmt.Errorf("snapshot: %w", err)
		}
		saveCtx, saveCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer saveCancel()
		saved, err := scenes.Save(saveCtx, doc)
		if err != nil {
			return err
		}
		log.Info("scene saved", zap.String("name", doc.Name), zap.Bool("written", saved))
	}

	st := rt.App.Stats()
	log.Info("stopped", zap.Uint64("frames", st.Frame), zap.Uint64("failures", st.Failures))
	return nil
}

// runLoop runs the App and restores the terminal if it panics.
func runLoop(ctx context.Context, screen tcell.Screen, a *app.App) error {
	defer func() {
		if r := recover(); r != nil {
			handleCrash(screen, r)
		}
	}()
	return a.Run(ctx)
}

func startProfile(cfg config.ProfileConfig) interface{ Stop() } {
	var mode func(*profile.Profile)
	switch cfg.Mode {
	case "cpu":
		mode = profile.CPUProfile
	case "mem":
		mode = profile.MemProfileAllocs
	case "trace":
		mode = profile.TraceProfile
	default:
		return nil
	}
	return profile.Start(mode, profile.ProfilePath(cfg.Dir), profile.NoShutdownHook, profile.Quiet)
}

func newLogger(cfg config.LoggingConfig, toFile bool) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	if toFile && cfg.File != "" {
		zapCfg.OutputPaths = []string{cfg.File}
		zapCfg.ErrorOutputPaths = []string{cfg.File}
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}

	return zapCfg.Build()
}
