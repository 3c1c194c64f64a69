package audio

import (
	"errors"
	"fmt"
	"strings"
)

// ErrDeviceUnavailable is returned when no input device is present or it cannot be opened.
var ErrDeviceUnavailable = errors.New("audio device unavailable")

var btKeywords = []string{
	"airpods", "beats", "bose", "wh-1000", "wf-1000",
	"sony wh-", "sony wf-",
	"jabra", "galaxy buds", "pixel buds", "powerbeats",
	"jbl ", "sennheiser momentum", "plantronics",
	"tozo", "anker soundcore", "skullcandy",
	"bluetooth", " bt ", " bt)", " bt]",
}

func IsBluetooth(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range btKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// DataCallback receives interleaved 16-bit little-endian PCM.
type DataCallback func(data []byte, frameCount uint32)

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
	DeviceName() string
}

// FindDevice resolves a configured device name. An empty name selects the system default (nil).
func FindDevice(ctx Context, name string) (*DeviceInfo, error) {
	if name == "" {
		return nil, nil
	}
	devices, err := ctx.Devices()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}
	for i := range devices {
		if devices[i].Name == name || devices[i].ID == name {
			return &devices[i], nil
		}
	}
	lower := strings.ToLower(name)
	for i := range devices {
		if strings.Contains(strings.ToLower(devices[i].Name), lower) {
			return &devices[i], nil
		}
	}
	return nil, fmt.Errorf("%w: no device matching %q", ErrDeviceUnavailable, name)
}

// Probe reports whether ctx can currently provide an input device.
func Probe(ctx Context, device *DeviceInfo) error {
	devices, err := ctx.Devices()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}
	if len(devices) == 0 {
		return fmt.Errorf("%w: no capture devices found", ErrDeviceUnavailable)
	}
	if device == nil {
		return nil
	}
	for _, d := range devices {
		if d.ID == device.ID {
			return nil
		}
	}
	return fmt.Errorf("%w: %s disconnected", ErrDeviceUnavailable, device.Name)
}
