package audio

import (
	"encoding/binary"
	"errors"
	"math"
	"sync"
)

// FakeContext is a test backend. Captures deliver whatever float32 frames
// the test feeds them, and the context tracks how many captures were open
// at the same time so tests can assert exclusive device ownership.
type FakeContext struct {
	mu       sync.Mutex
	devices  []DeviceInfo
	captures []*FakeCapture
	failNext bool
	open     int
	maxOpen  int
}

func NewFakeContext() *FakeContext {
	return &FakeContext{}
}

// FailNext makes the next NewCapture call fail with a device error.
func (f *FakeContext) FailNext() {
	f.mu.Lock()
	f.failNext = true
	f.mu.Unlock()
}

// Captures returns every capture created so far, in creation order.
func (f *FakeContext) Captures() []*FakeCapture {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*FakeCapture(nil), f.captures...)
}

// MaxOpen reports the largest number of simultaneously open captures.
func (f *FakeContext) MaxOpen() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxOpen
}

// SetDevices defines what Devices will enumerate.
func (f *FakeContext) SetDevices(devices []DeviceInfo) {
	f.mu.Lock()
	f.devices = devices
	f.mu.Unlock()
}

func (f *FakeContext) Devices() ([]DeviceInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]DeviceInfo(nil), f.devices...), nil
}

func (f *FakeContext) Close() {}

func (f *FakeContext) NewCapture(_ *DeviceInfo, _ CaptureConfig) (CaptureDevice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext {
		f.failNext = false
		return nil, errors.New("capture device unavailable")
	}
	c := &FakeCapture{ctx: f}
	f.captures = append(f.captures, c)
	f.open++
	if f.open > f.maxOpen {
		f.maxOpen = f.open
	}
	return c, nil
}

func (f *FakeContext) release() {
	f.mu.Lock()
	f.open--
	f.mu.Unlock()
}

type FakeCapture struct {
	ctx *FakeContext

	mu      sync.Mutex
	cb      DataCallback
	started bool
	closed  bool
}

func (c *FakeCapture) Start() error {
	c.mu.Lock()
	c.started = true
	c.mu.Unlock()
	return nil
}

func (c *FakeCapture) Stop() {
	c.mu.Lock()
	c.started = false
	c.mu.Unlock()
}

func (c *FakeCapture) Close() {
	c.mu.Lock()
	alreadyClosed := c.closed
	c.closed = true
	c.mu.Unlock()
	if !alreadyClosed {
		c.ctx.release()
	}
}

func (c *FakeCapture) SetCallback(cb DataCallback) {
	c.mu.Lock()
	c.cb = cb
	c.mu.Unlock()
}

func (c *FakeCapture) ClearCallback() {
	c.mu.Lock()
	c.cb = nil
	c.mu.Unlock()
}

// Started reports whether the capture stream is currently running.
func (c *FakeCapture) Started() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.started
}

// Feed delivers float32 samples to the registered callback, encoded the
// way the real backends deliver them. A capture that was stopped or has
// no callback swallows the samples.
func (c *FakeCapture) Feed(samples []float32) {
	c.mu.Lock()
	cb := c.cb
	started := c.started
	c.mu.Unlock()
	if cb == nil || !started {
		return
	}
	data := make([]byte, len(samples)*BytesPerFrame)
	for i, f := range samples {
		binary.LittleEndian.PutUint32(data[i*BytesPerFrame:], math.Float32bits(f))
	}
	cb(data, uint32(len(samples)))
}
