// Package doctor runs non-interactive system diagnostics for the daemon:
// config, input device access, audio capture, and output directory.
package doctor

import (
	"fmt"
	"os"
	"path/filepath"

	"memod/audio"
	"memod/config"
	"memod/encoder"
)

// Run executes all checks and returns an exit code (0=all pass, 1=any fail).
func Run(configPath string) int {
	fmt.Println("memod doctor - system diagnostics")
	fmt.Println("=================================")

	allPass := true

	cfg := checkConfig(configPath)
	if cfg == nil {
		allPass = false
	}
	if cfg != nil && !checkInputDevice(cfg.InputDevice) {
		allPass = false
	}
	if !checkAudio(cfg) {
		allPass = false
	}
	if cfg != nil && !checkOutputDir(cfg.OutputDir) {
		allPass = false
	}

	fmt.Println()
	if allPass {
		fmt.Println("All checks passed!")
		return 0
	}
	fmt.Println("Some checks failed. See details above.")
	return 1
}

func checkConfig(path string) *config.Config {
	fmt.Println()
	fmt.Println("[1/4] Configuration")
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		return nil
	}
	fmt.Printf("  PASS: input=%s audio=%s output=%s\n", cfg.InputDevice, cfg.AudioDevice, cfg.OutputDir)
	return cfg
}

func checkInputDevice(path string) bool {
	fmt.Println()
	fmt.Println("[2/4] Input device")
	f, err := os.Open(path)
	if err != nil {
		fmt.Printf("  FAIL: cannot open %s: %v\n", path, err)
		fmt.Println("        (is the device plugged in, and is the user in the 'input' group?)")
		return false
	}
	f.Close()
	fmt.Printf("  PASS: %s is readable\n", path)
	return true
}

func checkAudio(cfg *config.Config) bool {
	fmt.Println()
	fmt.Println("[3/4] Audio capture")
	ctx, err := audio.NewContext()
	if err != nil {
		fmt.Printf("  FAIL: cannot connect to audio: %v\n", err)
		return false
	}
	defer ctx.Close()

	devices, err := ctx.Devices()
	if err != nil {
		fmt.Printf("  FAIL: cannot list devices: %v\n", err)
		return false
	}
	if len(devices) == 0 {
		fmt.Println("  FAIL: no capture devices found")
		return false
	}

	deviceName := "default"
	if cfg != nil {
		deviceName = cfg.AudioDevice
	}
	device, err := audio.Resolve(ctx, deviceName)
	if err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		for _, d := range devices {
			fmt.Printf("        available: %s\n", d.Name)
		}
		return false
	}

	capture, err := ctx.NewCapture(device, audio.CaptureConfig{
		SampleRate: encoder.SampleRate,
		Channels:   encoder.Channels,
	})
	if err != nil {
		fmt.Printf("  FAIL: cannot open capture device: %v\n", err)
		return false
	}
	capture.Close()
	fmt.Printf("  PASS: %d capture device(s), %s opens\n", len(devices), deviceName)
	return true
}

func checkOutputDir(dir string) bool {
	fmt.Println()
	fmt.Println("[4/4] Output directory")
	probe := filepath.Join(dir, ".doctor_probe.wav")
	if err := encoder.WriteWAV(probe, []int16{0, 1, -1}); err != nil {
		fmt.Printf("  FAIL: cannot write to %s: %v\n", dir, err)
		return false
	}
	samples, err := encoder.ReadWAV(probe)
	os.Remove(probe)
	if err != nil {
		fmt.Printf("  FAIL: wav round-trip failed: %v\n", err)
		return false
	}
	if len(samples) != 3 {
		fmt.Printf("  FAIL: wav round-trip returned %d samples, want 3\n", len(samples))
		return false
	}
	fmt.Printf("  PASS: %s is writable, wav round-trip ok\n", dir)
	return true
}
