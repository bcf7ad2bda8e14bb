// Command tutorvox-live is a terminal client for live tutoring: it streams
// microphone audio to the model, plays the tutor's voice back, and snapshots
// a watched work file alongside the conversation.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/tutorvox/tutorvox/internal/dotenv"
	"github.com/tutorvox/tutorvox/pkg/core/live"
)

const defaultSystemInstruction = "You are a patient tutor. The student speaks " +
	"to you and shares their work surface as they go. Keep answers short and " +
	"spoken-word friendly, and ask guiding questions instead of giving full " +
	"solutions."

type options struct {
	model      string
	system     string
	snapshot   string
	intervalMS int
	host       string
	debug      bool
}

func main() {
	os.Exit(runMain(os.Stdin, os.Stdout, os.Stderr))
}

func runMain(stdin io.Reader, stdout, stderr io.Writer) int {
	if err := dotenv.Load(".env"); err != nil {
		fmt.Fprintf(stderr, "tutorvox-live: %v\n", err)
		return 1
	}

	var opt options
	flag.StringVar(&opt.model, "model", "models/gemini-2.0-flash-exp", "fully qualified model name")
	flag.StringVar(&opt.system, "system", defaultSystemInstruction, "system instruction for the tutor")
	flag.StringVar(&opt.snapshot, "snapshot", "", "path to the work file to snapshot while listening (.png is sent as an image)")
	flag.IntVar(&opt.intervalMS, "snapshot-interval-ms", 2000, "snapshot cadence in milliseconds")
	flag.StringVar(&opt.host, "host", "", "override the API host (for proxies)")
	flag.BoolVar(&opt.debug, "debug", false, "enable debug logging")
	flag.Parse()

	apiKey := strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
	if apiKey == "" {
		fmt.Fprintln(stderr, "tutorvox-live: GEMINI_API_KEY is required")
		return 1
	}

	level := slog.LevelInfo
	if opt.debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	if err := run(opt, apiKey, stdin, stdout, logger); err != nil {
		fmt.Fprintf(stderr, "tutorvox-live: %v\n", err)
		return 1
	}
	return 0
}

func run(opt options, apiKey string, stdin io.Reader, stdout io.Writer, logger *slog.Logger) error {
	sink, err := newOtoSink(live.DefaultOutputAudioConfig())
	if err != nil {
		return err
	}
	defer sink.Close()

	var provider live.SnapshotProvider
	if opt.snapshot != "" {
		provider = newFileSnapshotProvider(opt.snapshot)
	}

	cfg := live.DefaultControllerConfig(live.Backend{
		Host:              opt.host,
		APIKey:            apiKey,
		Model:             opt.model,
		SystemInstruction: opt.system,
	})
	if opt.intervalMS > 0 {
		cfg.Content.Interval = time.Duration(opt.intervalMS) * time.Millisecond
	}

	callbacks := live.Callbacks{
		OnTranscript: func(text string) {
			fmt.Fprint(stdout, text)
		},
		OnState: func(state live.SessionState) {
			fmt.Fprintf(stdout, "\n[%s]\n", state)
		},
		OnError: func(err error) {
			logger.Warn("session error", "error", err)
		},
	}

	ctrl := live.NewController(cfg, malgoDevice{}, sink, provider, callbacks, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		fmt.Fprintln(stdout, "\nshutting down")
		_ = ctrl.StopSession()
		cancel()
	}()

	if err := ctrl.StartSession(ctx); err != nil {
		return err
	}
	defer ctrl.StopSession()

	if err := ctrl.StartListening(ctx); err != nil {
		return err
	}

	fmt.Fprintln(stdout, "listening. commands: /mute /unmute /text <message> /quit")

	scanner := bufio.NewScanner(stdin)
	for {
		fmt.Fprint(stdout, "> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch {
		case line == "/quit" || line == "/exit":
			return ctrl.StopSession()
		case line == "/mute":
			if err := ctrl.StopListening(); err != nil {
				fmt.Fprintf(stdout, "mute: %v\n", err)
			}
		case line == "/unmute":
			if err := ctrl.StartListening(ctx); err != nil {
				fmt.Fprintf(stdout, "unmute: %v\n", err)
			}
		case line == "/level":
			fmt.Fprintf(stdout, "mic %d speaker %d\n", ctrl.InputLevel(), ctrl.OutputLevel())
		case strings.HasPrefix(line, "/text "):
			if err := ctrl.SendText(strings.TrimPrefix(line, "/text ")); err != nil {
				fmt.Fprintf(stdout, "text: %v\n", err)
			}
		default:
			fmt.Fprintln(stdout, "commands: /mute /unmute /level /text <message> /quit")
		}

		if ctx.Err() != nil {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read command: %w", err)
	}
	return ctrl.StopSession()
}
