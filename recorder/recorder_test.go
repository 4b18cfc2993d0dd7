package recorder

import (
	"context"
	"os"
	"testing"
	"time"

	"memod/audio"
	"memod/encoder"
)

func newTestController(t *testing.T) (*Controller, *audio.FakeContext, string) {
	t.Helper()
	dir := t.TempDir()
	fc := audio.NewFakeContext()
	c := New(fc, nil, dir)

	// Deterministic, strictly increasing timestamps so file names from
	// back-to-back sessions never collide.
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	n := 0
	c.now = func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Second)
	}
	return c, fc, dir
}

// toInt16 mirrors the capture-path conversion: scale and truncate with
// saturation at the int16 bounds.
func toInt16(f float32) int16 {
	return int16(min(max(int32(f*32767), -32768), 32767))
}

func countFiles(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	return len(entries)
}

func TestStopWhileIdleIsNoOp(t *testing.T) {
	c, fc, dir := newTestController(t)

	if path, ok := c.finish(); ok {
		t.Fatalf("finish while idle produced %q", path)
	}
	if n := countFiles(t, dir); n != 0 {
		t.Errorf("got %d files, want 0", n)
	}
	if n := len(fc.Captures()); n != 0 {
		t.Errorf("got %d captures, want 0", n)
	}
}

func TestDuplicateStartIsNoOp(t *testing.T) {
	c, fc, _ := newTestController(t)

	c.start()
	c.start()

	if n := len(fc.Captures()); n != 1 {
		t.Fatalf("got %d captures, want 1", n)
	}
	if _, ok := c.finish(); !ok {
		t.Fatal("finish after duplicate start failed")
	}
}

func TestFailedAcquisitionStaysIdle(t *testing.T) {
	c, fc, dir := newTestController(t)

	fc.FailNext()
	c.start()
	if c.active != nil {
		t.Fatal("controller should stay idle after failed acquisition")
	}
	if n := countFiles(t, dir); n != 0 {
		t.Errorf("got %d files after failed start, want 0", n)
	}

	// The next start gets a fresh attempt.
	c.start()
	if c.active == nil {
		t.Fatal("controller should be recording after successful start")
	}
	if _, ok := c.finish(); !ok {
		t.Fatal("finish after recovery failed")
	}
	if n := countFiles(t, dir); n != 1 {
		t.Errorf("got %d files, want 1", n)
	}
}

func TestEmptyRecordingStillProducesFile(t *testing.T) {
	c, _, _ := newTestController(t)

	c.start()
	path, ok := c.finish()
	if !ok {
		t.Fatal("finish with empty buffer should still produce a file")
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Size() < 44 {
		t.Errorf("file size %d, want at least a wav header", info.Size())
	}

	samples, err := encoder.ReadWAV(path)
	if err != nil {
		t.Fatalf("ReadWAV: %v", err)
	}
	if len(samples) != 0 {
		t.Errorf("got %d samples, want 0", len(samples))
	}
}

func TestCaptureRoundTrip(t *testing.T) {
	c, fc, _ := newTestController(t)

	c.start()
	capture := fc.Captures()[0]

	in := make([]float32, 1000)
	for i := range in {
		in[i] = float32(i-500) / 500.0
	}
	// Out-of-range samples must saturate, not wrap.
	in[0] = 1.5
	in[1] = -1.5

	capture.Feed(in[:600])
	capture.Feed(in[600:])

	path, ok := c.finish()
	if !ok {
		t.Fatal("finish failed")
	}

	got, err := encoder.ReadWAV(path)
	if err != nil {
		t.Fatalf("ReadWAV: %v", err)
	}
	if len(got) != len(in) {
		t.Fatalf("got %d samples, want %d", len(got), len(in))
	}
	for i, f := range in {
		if want := toInt16(f); got[i] != want {
			t.Fatalf("sample %d = %d, want %d", i, got[i], want)
		}
	}
}

func TestTwoSecondRecording(t *testing.T) {
	c, fc, _ := newTestController(t)

	c.start()
	capture := fc.Captures()[0]

	const n = 32000 // 2 seconds at 16 kHz
	in := make([]float32, n)
	for i := range in {
		in[i] = float32(i%200-100) / 200.0
	}
	for i := 0; i < n; i += 1024 {
		end := min(i+1024, n)
		capture.Feed(in[i:end])
	}

	path, ok := c.finish()
	if !ok {
		t.Fatal("finish failed")
	}

	got, err := encoder.ReadWAV(path)
	if err != nil {
		t.Fatalf("ReadWAV: %v", err)
	}
	if len(got) != n {
		t.Fatalf("got %d samples, want %d", len(got), n)
	}
	if dur := time.Duration(len(got)) * time.Second / encoder.SampleRate; dur != 2*time.Second {
		t.Errorf("duration = %v, want 2s", dur)
	}
	for i, f := range in {
		if want := toInt16(f); got[i] != want {
			t.Fatalf("sample %d = %d, want %d", i, got[i], want)
		}
	}
}

func TestBurstCommandsNeverOverlapSessions(t *testing.T) {
	c, fc, dir := newTestController(t)

	cmds := make(chan Command, 8)
	out := make(chan string, 8)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx, cmds, out) }()

	for _, cmd := range []Command{Start, Start, Stop, Start, Stop} {
		cmds <- cmd
	}

	var paths []string
	timeout := time.After(5 * time.Second)
	for len(paths) < 2 {
		select {
		case p := <-out:
			paths = append(paths, p)
		case <-timeout:
			t.Fatalf("timed out waiting for recordings, got %d", len(paths))
		}
	}

	cancel()
	<-done

	if n := len(fc.Captures()); n != 2 {
		t.Errorf("got %d capture acquisitions, want 2 (duplicate start must be ignored)", n)
	}
	if m := fc.MaxOpen(); m != 1 {
		t.Errorf("max simultaneously open captures = %d, want 1", m)
	}
	if n := countFiles(t, dir); n != 2 {
		t.Errorf("got %d files, want 2", n)
	}
	if paths[0] == paths[1] {
		t.Errorf("both sessions wrote to %s", paths[0])
	}
}

func TestRunStopsWhenCommandChannelCloses(t *testing.T) {
	c, _, _ := newTestController(t)

	cmds := make(chan Command)
	out := make(chan string, 1)
	close(cmds)

	if err := c.Run(context.Background(), cmds, out); err == nil {
		t.Fatal("Run should fail when the command channel closes")
	}
}

func TestRunAbortsActiveSessionOnCancel(t *testing.T) {
	c, fc, dir := newTestController(t)

	cmds := make(chan Command, 1)
	out := make(chan string, 1)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx, cmds, out) }()

	cmds <- Start
	waitFor(t, func() bool { return len(fc.Captures()) == 1 })

	cancel()
	if err := <-done; err != context.Canceled {
		t.Fatalf("Run returned %v, want context.Canceled", err)
	}

	if fc.Captures()[0].Started() {
		t.Error("capture still running after abort")
	}
	if n := countFiles(t, dir); n != 0 {
		t.Errorf("aborted session wrote %d files, want 0", n)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}
