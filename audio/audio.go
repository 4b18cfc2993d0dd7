package audio

import "fmt"

// DataCallback receives raw capture data as 32-bit float little-endian
// PCM. It is invoked on the audio backend's own thread and must not block.
type DataCallback func(data []byte, frameCount uint32)

// BytesPerFrame is the size of one mono float32 frame on the wire.
const BytesPerFrame = 4

type CaptureConfig struct {
	SampleRate uint32
	Channels   uint32
}

type DeviceInfo struct {
	ID   string // opaque platform-specific identifier
	Name string
}

type Context interface {
	Devices() ([]DeviceInfo, error)
	NewCapture(device *DeviceInfo, config CaptureConfig) (CaptureDevice, error)
	Close()
}

type CaptureDevice interface {
	Start() error
	Stop()
	Close()
	SetCallback(cb DataCallback)
	ClearCallback()
}

// DefaultDeviceName is the config sentinel for the system default device.
const DefaultDeviceName = "default"

// Resolve maps a configured device name to an enumerated capture device.
// An empty name or DefaultDeviceName selects the system default (nil).
func Resolve(ctx Context, name string) (*DeviceInfo, error) {
	if name == "" || name == DefaultDeviceName {
		return nil, nil
	}
	devices, err := ctx.Devices()
	if err != nil {
		return nil, fmt.Errorf("enumerating capture devices: %w", err)
	}
	for i := range devices {
		if devices[i].Name == name || devices[i].ID == name {
			return &devices[i], nil
		}
	}
	return nil, fmt.Errorf("capture device not found: %s", name)
}
