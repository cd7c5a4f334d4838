package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"mindly/server/internal/api"
	"mindly/server/internal/chat"
	"mindly/server/internal/config"
	"mindly/server/internal/gateway"
	"mindly/server/internal/library"
	"mindly/server/internal/logger"
	"mindly/server/internal/mood"
	"mindly/server/internal/questionnaire"
	"mindly/server/internal/session"
	"mindly/server/internal/storage"
)

func main() {
	// 参数只有配置文件路径；远端地址、存储驱动等也可以用环境变量覆盖（见 config.Load）。
	configPath := flag.String("config", "", "path to mindly.yaml (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Options{Mode: cfg.Logging.Mode, Level: cfg.Logging.Level, Redact: cfg.Logging.Redact})
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("mindly exited", "error", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	backend, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer backend.Close()
	store := storage.NewAdapter(backend, log)

	catalog := questionnaire.DefaultCatalog()
	if cfg.Paths.Sections != "" {
		if catalog, err = questionnaire.LoadCatalog(cfg.Paths.Sections); err != nil {
			return fmt.Errorf("load sections: %w", err)
		}
	}
	content := library.DefaultContent()
	if cfg.Paths.Library != "" {
		if content, err = library.LoadContent(cfg.Paths.Library); err != nil {
			return fmt.Errorf("load library: %w", err)
		}
	}

	history := questionnaire.NewHistory(store, cfg.Questionnaire.HistoryLimit)
	wizard := questionnaire.NewWizard(catalog, store, history, time.Now)
	wizard.Load(ctx)

	moods := mood.NewRecorder(store, time.Now)
	moods.Load(ctx)

	identity := session.NewIdentity(store, nil)
	remote := gateway.NewClient(cfg.Backend, cfg.Chat.Apology, log)
	chats := chat.NewManager(identity, history, remote, store, cfg.Chat.Greeting, log)
	defer chats.Close()

	server := api.NewServer(api.Deps{
		Config:   cfg,
		Log:      log,
		Catalog:  catalog,
		Wizard:   wizard,
		Moods:    moods,
		Chat:     chats,
		Identity: identity,
		Remote:   remote,
		Library:  library.New(content, nil),
		Themes:   library.NewThemeStore(store),
	})
	httpServer := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      server.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("mindly listening", "addr", httpServer.Addr, "storage", cfg.Storage.Driver, "backend", cfg.Backend.BaseURL)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		// 自动分析可能要等远端几十秒，放在后台；期间 UI 看到 loading。
		if err := chats.Open(gctx); err != nil && !errors.Is(err, chat.ErrClosed) && !errors.Is(err, chat.ErrAbandoned) {
			log.Warn("open chat session failed", "error", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		chats.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
