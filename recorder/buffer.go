package recorder

import (
	"encoding/binary"
	"math"
	"sync"

	"memod/audio"
)

// sampleBuffer accumulates converted samples between the capture callback
// and the controller. It is the only state shared between the two; the
// lock is held only for the append or the take, never across I/O.
type sampleBuffer struct {
	mu      sync.Mutex
	samples []int16
}

// appendFloat32LE converts raw float32 frames to signed 16-bit and appends
// them. Runs on the capture callback thread: no I/O, no allocation beyond
// amortized buffer growth.
func (b *sampleBuffer) appendFloat32LE(data []byte) {
	b.mu.Lock()
	for i := 0; i+audio.BytesPerFrame <= len(data); i += audio.BytesPerFrame {
		f := math.Float32frombits(binary.LittleEndian.Uint32(data[i:]))
		v := min(max(int32(f*math.MaxInt16), math.MinInt16), math.MaxInt16)
		b.samples = append(b.samples, int16(v))
	}
	b.mu.Unlock()
}

// take transfers ownership of the accumulated samples to the caller,
// leaving the buffer empty. Swap, not copy.
func (b *sampleBuffer) take() []int16 {
	b.mu.Lock()
	s := b.samples
	b.samples = nil
	b.mu.Unlock()
	return s
}

func (b *sampleBuffer) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.samples)
}
