// Package input watches a dedicated evdev device and translates one
// button's press/release transitions into recording commands. The watch
// survives device unplug/replug: every open or read failure is retried
// after a fixed backoff.
package input

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"time"

	"memod/log"
	"memod/recorder"
)

const (
	evKey      = 1
	keyPress   = 1
	keyRelease = 0

	// ButtonLeft is BTN_LEFT, the designated memo button on the
	// dedicated mouse.
	ButtonLeft = 0x110
)

// input_event is 24 bytes on 64-bit Linux:
// timeval (16 bytes) + type (2) + code (2) + value (4)
const eventSize = 24

// RetryPolicy controls device re-acquisition after open or read failures.
type RetryPolicy struct {
	Backoff     time.Duration
	MaxAttempts int // 0 = retry forever
}

// DefaultRetryPolicy retries indefinitely, five seconds apart.
var DefaultRetryPolicy = RetryPolicy{Backoff: 5 * time.Second}

type Monitor struct {
	path   string
	button uint16
	policy RetryPolicy

	// open is swapped out by tests.
	open func(path string) (*os.File, error)
}

func NewMonitor(path string, policy RetryPolicy) *Monitor {
	return &Monitor{
		path:   path,
		button: ButtonLeft,
		policy: policy,
		open:   os.Open,
	}
}

// Run watches the device until ctx is cancelled. Each monitoring attempt
// ends on the first open or read error; the monitor then waits out the
// backoff and starts over from device open.
func (m *Monitor) Run(ctx context.Context, cmds chan<- recorder.Command) error {
	attempts := 0
	for {
		err := m.monitorOnce(ctx, cmds)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		attempts++
		log.Errorf("input device %s: %v", m.path, err)

		if m.policy.MaxAttempts > 0 && attempts >= m.policy.MaxAttempts {
			return fmt.Errorf("input device %s: giving up after %d attempts: %w", m.path, attempts, err)
		}

		log.Warnf("retrying input device in %s", m.policy.Backoff)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.policy.Backoff):
		}
	}
}

type rawEvent struct {
	Type  uint16
	Code  uint16
	Value int32
}

func (m *Monitor) monitorOnce(ctx context.Context, cmds chan<- recorder.Command) error {
	f, err := m.open(m.path)
	if err != nil {
		return fmt.Errorf("opening device: %w", err)
	}
	defer f.Close()
	log.Info("input device opened: " + m.path)

	// Device reads block, so they get their own goroutine. Closing the
	// file on cancellation unblocks the pending read.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			f.Close()
		case <-stop:
		}
	}()

	events := make(chan rawEvent, 32)
	readErr := make(chan error, 1)
	go readEvents(f, events, readErr, stop)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return <-readErr
			}
			if ev.Type != evKey || ev.Code != m.button {
				continue
			}

			var cmd recorder.Command
			switch ev.Value {
			case keyPress:
				cmd = recorder.Start
			case keyRelease:
				cmd = recorder.Stop
			default:
				// Key repeat (value 2) and anything else.
				continue
			}

			log.Info("button " + cmd.String())
			select {
			case cmds <- cmd:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func readEvents(f *os.File, events chan<- rawEvent, readErr chan<- error, stop <-chan struct{}) {
	defer close(events)
	buf := make([]byte, eventSize*16)
	for {
		n, err := f.Read(buf)
		if err != nil {
			readErr <- fmt.Errorf("reading device: %w", err)
			return
		}
		for i := 0; i+eventSize <= n; i += eventSize {
			ev := rawEvent{
				Type:  binary.LittleEndian.Uint16(buf[i+16:]),
				Code:  binary.LittleEndian.Uint16(buf[i+18:]),
				Value: int32(binary.LittleEndian.Uint32(buf[i+20:])),
			}
			select {
			case events <- ev:
			case <-stop:
				return
			}
		}
	}
}
