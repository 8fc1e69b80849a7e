package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nadzzz/solace/internal/audio"
	"github.com/nadzzz/solace/internal/config"
	"github.com/nadzzz/solace/internal/health"
	"github.com/nadzzz/solace/internal/speech"
	"github.com/nadzzz/solace/internal/store"
	"github.com/nadzzz/solace/internal/web"
)

func newWebCmd(load func() (*config.Config, error)) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "web",
		Short: "Serve the browser chat",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Web.Port = port
			}
			config.SetupLogging(cfg.Logging, "json")
			slog.Info("solace starting", "version", version)

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return runWeb(ctx, cfg)
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "HTTP port (overrides web.port)")
	return cmd
}

func runWeb(ctx context.Context, cfg *config.Config) error {
	sessCfg, err := sessionConfig(cfg)
	if err != nil {
		return err
	}

	client, err := newCompletionClient(ctx, cfg.Chat)
	if err != nil {
		return err
	}
	defer client.Close()

	st, err := newStore(ctx, cfg.Web.Store)
	if err != nil {
		return err
	}
	defer st.Close()

	opts := web.Options{
		Port:    cfg.Web.Port,
		Session: sessCfg,
	}

	// Uploaded recordings need a recognizer; without one the page is text only.
	recognizer, err := newRecognizer(ctx, cfg.STT)
	if err != nil {
		slog.Warn("voice messages disabled", "error", err)
	} else {
		defer recognizer.Close()
		opts.Recognizer = recognizer
	}

	if cfg.Web.SpeakReplies {
		synth := newSynthesizer(cfg.TTS)
		if synth != nil {
			defer synth.Close()
		}
		player := audio.NewCommandPlayer(cfg.Audio.PlayerCommand)
		bg := speech.NewBackground(speech.New(ctx, synth, player, logPrinter{}, synthesizeOpts(cfg.TTS)))
		defer bg.Close()
		opts.Speaker = bg
	}

	healthServer := health.New(cfg.Server)
	go func() {
		if err := healthServer.ListenAndServe(ctx); err != nil {
			slog.Error("health server failed", "error", err)
		}
	}()

	srv := web.New(client, st, opts)
	healthServer.SetReady(true)
	slog.Info("solace ready",
		"port", cfg.Web.Port,
		"store", cfg.Web.Store.Backend,
		"health_port", cfg.Server.HealthPort)

	err = srv.ListenAndServe(ctx)
	healthServer.SetReady(false)
	slog.Info("solace stopped")
	return err
}

func newStore(ctx context.Context, cfg config.StoreConfig) (store.Store, error) {
	switch cfg.Backend {
	case "memory":
		return store.NewMemory(), nil
	case "redis":
		return store.NewRedis(ctx, cfg.Redis)
	default:
		return nil, fmt.Errorf("unknown web store backend %q", cfg.Backend)
	}
}

// logPrinter records spoken replies in the server log instead of a terminal.
type logPrinter struct{}

func (logPrinter) PrintReply(text string) {
	slog.Debug("speaking reply", "chars", len(text))
}
