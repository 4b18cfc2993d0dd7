// memod is a personal voice-memo daemon: hold the button on a dedicated
// input device to record from the microphone; on release the memo is
// saved as a WAV file, transcribed by a remote Whisper endpoint, and the
// transcript (or a failure notice) is pushed via ntfy.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"memod/audio"
	"memod/config"
	"memod/doctor"
	"memod/input"
	"memod/log"
	"memod/recorder"
	"memod/transcriber"
)

var version = "dev"

// queueDepth bounds the hand-off channels between pipeline stages. A
// stalled downstream stage backpressures the one above it.
const queueDepth = 32

func main() {
	os.Exit(run())
}

func run() int {
	configFlag := flag.String("config", "", "config file path (default: ~/.config/memod/config.toml)")
	setupFlag := flag.Bool("setup", false, "interactively pick the microphone device and exit")
	doctorFlag := flag.Bool("doctor", false, "run system diagnostics and exit")
	versionFlag := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("memod %s\n", version)
		return 0
	}
	if *doctorFlag {
		return doctor.Run(*configFlag)
	}

	if *setupFlag {
		return runSetup()
	}

	cfg, err := config.Load(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	actx, err := audio.NewContext()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing audio: %v\n", err)
		return 1
	}
	defer actx.Close()

	device, err := audio.Resolve(actx, cfg.AudioDevice)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	log.Infof("memod %s starting", version)
	log.Infof("input device: %s", cfg.InputDevice)
	log.Infof("audio device: %s", cfg.AudioDevice)
	log.Infof("output directory: %s", cfg.OutputDir)
	log.Infof("whisper url: %s", cfg.WhisperURL)
	log.Infof("ntfy topic: %s", cfg.NtfyTopic)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	commands := make(chan recorder.Command, queueDepth)
	recordings := make(chan string, queueDepth)

	monitor := input.NewMonitor(cfg.InputDevice, input.DefaultRetryPolicy)
	controller := recorder.New(actx, device, cfg.OutputDir)
	dispatch := transcriber.New(cfg.WhisperURL, cfg.NtfyTopic)

	// The first task to return, normally or not, cancels the rest. The
	// daemon has no graceful partial mode: a dead stage makes the whole
	// service useless.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return monitor.Run(gctx, commands) })
	g.Go(func() error { return controller.Run(gctx, commands, recordings) })
	g.Go(func() error { return dispatch.Run(gctx, recordings) })

	log.Info("all tasks started, daemon is running")

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Errorf("daemon terminated: %v", err)
		return 1
	}
	log.Info("daemon shutting down")
	return 0
}

func runSetup() int {
	actx, err := audio.NewContext()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing audio: %v\n", err)
		return 1
	}
	defer actx.Close()

	device, err := audio.SelectDevice(actx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	name := audio.DefaultDeviceName
	if device != nil {
		name = device.Name
	}
	fmt.Printf("Selected: %s\nSet audio_device = %q in your config file.\n", name, name)
	return 0
}
