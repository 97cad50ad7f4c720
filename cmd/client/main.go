package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gookit/color"

	"github.com/NicolasHaas/gowhisper/pkg/audio"
	"github.com/NicolasHaas/gowhisper/pkg/client"
	"github.com/NicolasHaas/gowhisper/pkg/logging"
	"github.com/NicolasHaas/gowhisper/pkg/version"
)

func main() {
	// Defaults come from GOWHISPER_* env vars; flags override them.
	cfg, err := client.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid environment: %v\n", err)
		os.Exit(1)
	}

	flag.StringVar(&cfg.Addr, "addr", cfg.Addr, "Server address (host:port)")
	flag.StringVar(&cfg.Transport, "transport", cfg.Transport, "Transport: tls or ws")
	flag.StringVar(&cfg.AudioBackend, "audio", cfg.AudioBackend, "Audio backend: portaudio or null")
	flag.StringVar(&cfg.InputDevice, "input", cfg.InputDevice, "Capture device name (default device if empty)")
	flag.StringVar(&cfg.OutputDevice, "output", cfg.OutputDevice, "Playback device name (default device if empty)")
	flag.IntVar(&cfg.SampleRate, "rate", cfg.SampleRate, "Capture sample rate in Hz")
	flag.IntVar(&cfg.Channels, "channels", cfg.Channels, "Capture channels (1 or 2)")
	flag.Float64Var(&cfg.GateThreshold, "gate", cfg.GateThreshold, "RMS silence gate for call audio (0 disables)")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: "+logging.LevelNames())
	flag.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format: text or json")
	flag.BoolVar(&cfg.Color, "color", cfg.Color, "Colorize console output")
	listDevices := flag.Bool("list-devices", false, "List audio devices and exit")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("gowhisper", version.Full())
		return
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	// Logs go to stderr so they do not interleave with the console.
	if err := logging.Setup(logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Output: os.Stderr,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "invalid logging config: %v\n", err)
		os.Exit(1)
	}
	color.Enable = cfg.Color

	if *listDevices {
		if err := printDevices(); err != nil {
			slog.Error("list devices", "err", err)
			os.Exit(1)
		}
		return
	}

	if cfg.AudioBackend == audio.BackendPortAudio {
		audio.PreInitAudio()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := client.Dial(ctx, cfg)
	if err != nil {
		slog.Error("connect", "addr", cfg.Addr, "err", err)
		os.Exit(1)
	}
	slog.Info("connected", "addr", cfg.Addr, "transport", cfg.Transport)

	runErr := client.NewConsole(c, os.Stdin, os.Stdout).Run(ctx)

	closeCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := c.Close(closeCtx); err != nil {
		slog.Warn("close", "err", err)
	}
	if runErr != nil {
		slog.Error("console", "err", runErr)
		os.Exit(1)
	}
}

func printDevices() error {
	devices, err := audio.ListDevices()
	if err != nil {
		return err
	}
	for _, d := range devices {
		marks := ""
		if d.IsDefaultInput {
			marks += " [default input]"
		}
		if d.IsDefaultOutput {
			marks += " [default output]"
		}
		fmt.Printf("%-40s in:%d out:%d %.0fHz%s\n", d.Name, d.MaxInputs, d.MaxOutputs, d.DefaultSampleRate, marks)
	}
	return nil
}
