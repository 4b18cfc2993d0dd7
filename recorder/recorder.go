// Package recorder owns the microphone and the capture lifecycle. It runs
// a two-state machine, Idle and Recording, driven by button commands, and
// finalizes each session into a WAV file handed downstream.
package recorder

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	"memod/audio"
	"memod/encoder"
	"memod/log"
)

// Command is a logical button transition. Start opens a capture session,
// Stop finalizes it.
type Command int

const (
	Start Command = iota
	Stop
)

func (c Command) String() string {
	switch c {
	case Start:
		return "start"
	case Stop:
		return "stop"
	}
	return "unknown"
}

// session is one active capture. The controller is Recording exactly when
// it holds a non-nil session; there is no separate recording flag.
type session struct {
	capture audio.CaptureDevice
	buf     *sampleBuffer
}

type Controller struct {
	audio  audio.Context
	device *audio.DeviceInfo
	outDir string

	now    func() time.Time
	active *session
}

func New(ctx audio.Context, device *audio.DeviceInfo, outDir string) *Controller {
	return &Controller{
		audio:  ctx,
		device: device,
		outDir: outDir,
		now:    time.Now,
	}
}

// Run consumes commands in order until ctx is cancelled or cmds closes,
// emitting the path of each finalized recording on out. The send on out
// blocks when the downstream stage stalls, which intentionally delays the
// next command.
func (c *Controller) Run(ctx context.Context, cmds <-chan Command, out chan<- string) error {
	defer c.abort()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case cmd, ok := <-cmds:
			if !ok {
				return errors.New("command channel closed")
			}
			switch cmd {
			case Start:
				c.start()
			case Stop:
				path, ok := c.finish()
				if !ok {
					continue
				}
				select {
				case out <- path:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
	}
}

// start acquires the capture device and transitions Idle -> Recording.
// A failed acquisition is logged and leaves the controller Idle; the next
// button press gets a fresh attempt.
func (c *Controller) start() {
	if c.active != nil {
		log.Warn("already recording, ignoring start command")
		return
	}

	capture, err := c.audio.NewCapture(c.device, audio.CaptureConfig{
		SampleRate: encoder.SampleRate,
		Channels:   encoder.Channels,
	})
	if err != nil {
		log.Errorf("failed to start recording: %v", err)
		return
	}

	buf := &sampleBuffer{}
	capture.SetCallback(func(data []byte, _ uint32) {
		buf.appendFloat32LE(data)
	})

	if err := capture.Start(); err != nil {
		capture.ClearCallback()
		capture.Close()
		log.Errorf("failed to start capture stream: %v", err)
		return
	}

	c.active = &session{capture: capture, buf: buf}
	log.Info("recording started")
}

// finish transitions Recording -> Idle: stops the stream, takes ownership
// of the buffer, and writes the container file. Returns the file path and
// whether one was produced.
func (c *Controller) finish() (string, bool) {
	if c.active == nil {
		log.Warn("not recording, ignoring stop command")
		return "", false
	}

	sess := c.active
	c.active = nil

	// Stop the stream first so no further samples arrive, then take
	// the buffer.
	sess.capture.Stop()
	sess.capture.ClearCallback()
	sess.capture.Close()

	samples := sess.buf.take()
	if len(samples) == 0 {
		log.Warn("no audio data recorded")
	}

	path := filepath.Join(c.outDir, encoder.Filename(c.now()))
	if err := encoder.WriteWAV(path, samples); err != nil {
		log.Errorf("failed to save recording: %v", err)
		return "", false
	}

	log.Infof("recording saved: %s (%d samples)", path, len(samples))
	return path, true
}

// abort releases an in-flight session without finalizing it. Shutdown is
// abrupt; a capture interrupted mid-session produces no file.
func (c *Controller) abort() {
	if c.active == nil {
		return
	}
	c.active.capture.Stop()
	c.active.capture.ClearCallback()
	c.active.capture.Close()
	c.active = nil
	log.Warn("recording aborted by shutdown")
}
