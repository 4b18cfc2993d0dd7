package input

import (
	"context"
	"encoding/binary"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"memod/recorder"
)

func event(typ, code uint16, value int32) []byte {
	b := make([]byte, eventSize)
	binary.LittleEndian.PutUint16(b[16:], typ)
	binary.LittleEndian.PutUint16(b[18:], code)
	binary.LittleEndian.PutUint32(b[20:], uint32(value))
	return b
}

func expectCommand(t *testing.T, cmds <-chan recorder.Command, want recorder.Command) {
	t.Helper()
	select {
	case got := <-cmds:
		if got != want {
			t.Fatalf("got command %v, want %v", got, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %v", want)
	}
}

func expectNoCommand(t *testing.T, cmds <-chan recorder.Command) {
	t.Helper()
	select {
	case got := <-cmds:
		t.Fatalf("unexpected command %v", got)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMonitorTranslatesButtonTransitions(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	m := NewMonitor("/dev/input/test", RetryPolicy{Backoff: time.Millisecond})
	m.open = func(string) (*os.File, error) { return r, nil }

	cmds := make(chan recorder.Command, 8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx, cmds) }()

	w.Write(event(evKey, ButtonLeft, 1))
	expectCommand(t, cmds, recorder.Start)

	w.Write(event(evKey, ButtonLeft, 0))
	expectCommand(t, cmds, recorder.Stop)

	cancel()
	<-done
}

func TestMonitorIgnoresUnrelatedEvents(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	m := NewMonitor("/dev/input/test", RetryPolicy{Backoff: time.Millisecond})
	m.open = func(string) (*os.File, error) { return r, nil }

	cmds := make(chan recorder.Command, 8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx, cmds)

	w.Write(event(2, 0, 5))              // EV_REL: mouse movement
	w.Write(event(evKey, 0x111, 1))      // BTN_RIGHT
	w.Write(event(evKey, ButtonLeft, 2)) // key repeat
	expectNoCommand(t, cmds)

	w.Write(event(evKey, ButtonLeft, 1))
	expectCommand(t, cmds, recorder.Start)
}

func TestMonitorRetriesOpenWithBackoff(t *testing.T) {
	const failures = 3

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	var mu sync.Mutex
	attempts := 0

	m := NewMonitor("/dev/input/test", RetryPolicy{Backoff: time.Millisecond})
	m.open = func(string) (*os.File, error) {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		if attempts <= failures {
			return nil, errors.New("no such device")
		}
		return r, nil
	}

	cmds := make(chan recorder.Command, 8)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx, cmds) }()

	w.Write(event(evKey, ButtonLeft, 1))
	expectCommand(t, cmds, recorder.Start)

	cancel()
	<-done

	mu.Lock()
	defer mu.Unlock()
	if attempts != failures+1 {
		t.Errorf("got %d open attempts, want %d", attempts, failures+1)
	}
}

func TestMonitorGivesUpAfterMaxAttempts(t *testing.T) {
	var mu sync.Mutex
	attempts := 0

	m := NewMonitor("/dev/input/test", RetryPolicy{Backoff: time.Millisecond, MaxAttempts: 3})
	m.open = func(string) (*os.File, error) {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		return nil, errors.New("no such device")
	}

	cmds := make(chan recorder.Command, 1)
	err := m.Run(context.Background(), cmds)
	if err == nil || errors.Is(err, context.Canceled) {
		t.Fatalf("Run returned %v, want give-up error", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if attempts != 3 {
		t.Errorf("got %d open attempts, want 3", attempts)
	}
}

func TestMonitorSurvivesDeviceLoss(t *testing.T) {
	r1, w1, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	r2, w2, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	defer w2.Close()

	var mu sync.Mutex
	attempts := 0

	m := NewMonitor("/dev/input/test", RetryPolicy{Backoff: time.Millisecond})
	m.open = func(string) (*os.File, error) {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		if attempts == 1 {
			return r1, nil
		}
		return r2, nil
	}

	cmds := make(chan recorder.Command, 8)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx, cmds) }()

	w1.Write(event(evKey, ButtonLeft, 1))
	expectCommand(t, cmds, recorder.Start)

	// Unplug: the read loop errors out and the monitor reopens.
	w1.Close()

	w2.Write(event(evKey, ButtonLeft, 0))
	expectCommand(t, cmds, recorder.Stop)

	cancel()
	<-done
}
