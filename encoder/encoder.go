// Package encoder writes finished recordings as WAV containers and names
// the memo files. Capture is raw PCM; the container write is deliberately
// thin.
package encoder

import (
	"errors"
	"fmt"
	"os"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	SampleRate    = 16000
	Channels      = 1
	BitsPerSample = 16

	pcmFormat = 1
)

// Filename returns the file name for a memo finalized at t,
// memo_<YYYYMMDD_HHMMSS>.wav.
func Filename(t time.Time) string {
	return "memo_" + t.Format("20060102_150405") + ".wav"
}

// WriteWAV writes samples as a mono 16 kHz signed 16-bit WAV file at path.
// An empty sample slice still produces a header-valid file.
func WriteWAV(path string, samples []int16) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating wav file: %w", err)
	}

	enc := wav.NewEncoder(f, SampleRate, BitsPerSample, Channels, pcmFormat)

	data := make([]int, len(samples))
	for i, s := range samples {
		data[i] = int(s)
	}
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: Channels, SampleRate: SampleRate},
		Data:           data,
		SourceBitDepth: BitsPerSample,
	}

	if err := enc.Write(buf); err != nil {
		enc.Close()
		f.Close()
		return fmt.Errorf("writing wav data: %w", err)
	}
	if err := enc.Close(); err != nil {
		f.Close()
		return fmt.Errorf("finalizing wav file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing wav file: %w", err)
	}
	return nil
}

// ReadWAV decodes a WAV file written by WriteWAV back into samples.
// Used by diagnostics and tests.
func ReadWAV(path string) ([]int16, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening wav file: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, errors.New("not a valid wav file")
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decoding wav data: %w", err)
	}
	if dec.SampleRate != SampleRate || dec.NumChans != Channels {
		return nil, fmt.Errorf("unexpected wav format: %d Hz, %d channel(s)", dec.SampleRate, dec.NumChans)
	}

	samples := make([]int16, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = int16(v)
	}
	return samples, nil
}
