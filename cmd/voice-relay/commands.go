package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/book-expert/voice-relay/internal/audio"
	"github.com/book-expert/voice-relay/internal/core"
	"github.com/book-expert/voice-relay/internal/worker"
	"github.com/spf13/cobra"
)

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func newRunCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Relay your chat lines to the voice channel until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := bootstrap(flags)
			if err != nil {
				return err
			}
			defer closeLogger(log)

			watcherCfg, err := resolveWatcher(cfg, log)
			if err != nil {
				return err
			}

			backend, cleanup, err := newBackend(cfg, log)
			if err != nil {
				return err
			}
			defer cleanup()

			devices, err := openPlayback(cfg, log)
			if err != nil {
				return err
			}
			defer devices.close(log)

			relay, err := newRelay(cfg, watcherCfg, backend, devices.keys, devices.output, log)
			if err != nil {
				return err
			}

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			log.System("voice-relay started with the %s backend on [%s]", cfg.Speech.Backend, devices.output.Name())

			runErr := relay.Run(ctx)
			if runErr != nil {
				log.Error("Relay stopped: %v", runErr)

				return runErr
			}

			log.System("voice-relay stopped")

			return nil
		},
	}
}

func newSayCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "say <text>",
		Short: "Speak one line into the voice channel",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			message, ok := core.NewChatMessage(strings.Join(args, " "))
			if !ok {
				return ErrNothingSpoken
			}

			cfg, log, err := bootstrap(flags)
			if err != nil {
				return err
			}
			defer closeLogger(log)

			backend, cleanup, err := newBackend(cfg, log)
			if err != nil {
				return err
			}
			defer cleanup()

			devices, err := openPlayback(cfg, log)
			if err != nil {
				return err
			}
			defer devices.close(log)

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			return speakOnce(ctx, message, backend, devices.keys, devices.output, log, stageOptions(cfg)...)
		},
	}
}

func newDevicesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List audio output devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			names, err := audio.ListOutputDevices()
			if err != nil {
				return err
			}

			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}

			return nil
		},
	}
}

func newServeSpeechCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve-speech",
		Short: "Serve speech synthesis to remote relays over NATS",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := bootstrap(flags)
			if err != nil {
				return err
			}
			defer closeLogger(log)

			backend, err := newWorkerBackend(cfg, log)
			if err != nil {
				return err
			}

			link, err := connectNATS(cfg, log)
			if err != nil {
				return err
			}
			defer link.conn.Close()

			speechWorker := worker.NewSynthesisWorker(link.conn, cfg.NATS.SynthesisSubject, link.store, backend, log)

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			log.System("Speech worker using the %s backend", cfg.Speech.Backend)

			return speechWorker.Run(ctx)
		},
	}
}
