package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nadzzz/solace/internal/audio"
	"github.com/nadzzz/solace/internal/config"
	"github.com/nadzzz/solace/internal/console"
	"github.com/nadzzz/solace/internal/listen"
	"github.com/nadzzz/solace/internal/session"
	"github.com/nadzzz/solace/internal/speech"
)

func newConsoleCmd(load func() (*config.Config, error)) *cobra.Command {
	var (
		typed    bool
		markdown bool
	)
	cmd := &cobra.Command{
		Use:   "console",
		Short: "Talk in the terminal (the default)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			config.SetupLogging(cfg.Logging, "pretty")

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return runConsole(ctx, cfg, cmd.OutOrStdout(), typed, markdown)
		},
	}
	cmd.Flags().BoolVar(&typed, "text", false, "type messages instead of speaking")
	cmd.Flags().BoolVar(&markdown, "markdown", true, "render replies as markdown")
	return cmd
}

func runConsole(ctx context.Context, cfg *config.Config, out io.Writer, typed, markdown bool) error {
	sessCfg, err := sessionConfig(cfg)
	if err != nil {
		return err
	}

	client, err := newCompletionClient(ctx, cfg.Chat)
	if err != nil {
		return err
	}
	defer client.Close()

	con := console.New(out, sessCfg.Persona, console.Options{Markdown: markdown})

	synth := newSynthesizer(cfg.TTS)
	if synth != nil {
		defer synth.Close()
	}
	player := audio.NewCommandPlayer(cfg.Audio.PlayerCommand)
	speaker := speech.New(ctx, synth, player, con, synthesizeOpts(cfg.TTS))

	var listener listen.Listener
	if typed {
		text, err := listen.NewText("You: ", nil)
		if err != nil {
			return err
		}
		defer text.Close()
		listener = text
	} else {
		recognizer, err := newRecognizer(ctx, cfg.STT)
		if err != nil {
			return err
		}
		defer recognizer.Close()

		source := audio.NewCommandSource(cfg.Audio.CaptureCommand)
		listener = listen.NewMic(source, recognizer, con, listen.MicOptions{
			Format:         audio.Format{SampleRate: cfg.Audio.SampleRate, Channels: 1, Width: 2},
			Calibration:    cfg.Audio.Calibration,
			ListenTimeout:  cfg.Audio.ListenTimeout,
			PhraseLimit:    cfg.Audio.PhraseTimeLimit,
			PauseThreshold: cfg.Audio.PauseThreshold,
		})
	}

	con.Welcome()
	sess := session.New(sessCfg, client, speaker,
		session.WithID("console"),
		session.WithListener(listener),
		session.WithObserver(session.MultiObserver{session.NewSlogObserver(nil), con}))

	err = sess.Run(ctx)
	if errors.Is(err, context.Canceled) {
		slog.Debug("console interrupted")
		return nil
	}
	return err
}
