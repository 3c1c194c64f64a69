package audio

import (
	"errors"
	"math"
	"testing"
	"time"

	"murmur/encoder"
)

func openFake(t *testing.T) (*FakeContext, *Buffer, *FakeCapture) {
	t.Helper()
	ctx := NewManualFakeContext()
	buf, err := Open(ctx, nil, CaptureConfig{SampleRate: encoder.SampleRate, Channels: encoder.Channels})
	if err != nil {
		t.Fatal(err)
	}
	return ctx, buf, ctx.LastCapture()
}

func tone(n int, amp float64) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = int16(amp * 32767 * math.Sin(2*math.Pi*440*float64(i)/encoder.SampleRate))
	}
	return out
}

func TestOpenUnavailable(t *testing.T) {
	ctx := NewManualFakeContext()
	ctx.SetUnavailable(true)
	_, err := Open(ctx, nil, CaptureConfig{SampleRate: 16000, Channels: 1})
	if !errors.Is(err, ErrDeviceUnavailable) {
		t.Fatalf("err = %v, want ErrDeviceUnavailable", err)
	}
	if ctx.Active() != 0 {
		t.Fatalf("active captures = %d after failed open", ctx.Active())
	}
}

func TestOpenInvalidConfig(t *testing.T) {
	if _, err := Open(NewManualFakeContext(), nil, CaptureConfig{}); err == nil {
		t.Fatal("expected error for zero config")
	}
}

func TestCloseReturnsPushedSamples(t *testing.T) {
	ctx, buf, capture := openFake(t)
	if ctx.Active() != 1 {
		t.Fatalf("active = %d, want 1", ctx.Active())
	}

	in := tone(2500, 0.3)
	capture.Feed(in[:1000])
	capture.Feed(in[1000:])

	if buf.Frames() != 2500 {
		t.Fatalf("frames = %d, want 2500", buf.Frames())
	}
	if got := len(buf.chunks); got != 3 {
		t.Errorf("chunks = %d, want 3", got)
	}

	out := buf.Close()
	if len(out) != len(in) {
		t.Fatalf("closed with %d samples, want %d", len(out), len(in))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("sample %d = %d, want %d", i, out[i], in[i])
		}
	}
	if !capture.Closed() || ctx.Active() != 0 {
		t.Fatal("device not released on close")
	}
	if again := buf.Close(); again != nil {
		t.Fatalf("second close returned %d samples", len(again))
	}
}

func TestCloseRoundTripsThroughWAV(t *testing.T) {
	_, buf, capture := openFake(t)
	capture.FeedSilence(2 * time.Second)
	capture.Feed(tone(777, 0.5))

	samples := buf.Close()
	data, err := encoder.EncodeWAV(samples, buf.SampleRate(), buf.Channels())
	if err != nil {
		t.Fatal(err)
	}
	pcm, err := encoder.DecodeWAV(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(pcm.Samples) != 2*encoder.SampleRate+777 {
		t.Fatalf("decoded %d samples, want %d", len(pcm.Samples), 2*encoder.SampleRate+777)
	}
}

func TestAbortDiscards(t *testing.T) {
	ctx, buf, capture := openFake(t)
	capture.Feed(tone(4000, 0.2))
	buf.Abort()

	if ctx.Active() != 0 || !capture.Closed() {
		t.Fatal("device not released on abort")
	}
	capture.Feed(tone(100, 0.2))
	if out := buf.Close(); out != nil {
		t.Fatalf("close after abort returned %d samples", len(out))
	}
}

func TestPushAfterCloseIgnored(t *testing.T) {
	buf := NewBuffer(16000, 1)
	buf.PushFrame(samplesToBytes(tone(320, 0.1)), 320)
	buf.Close()
	buf.PushFrame(samplesToBytes(tone(320, 0.1)), 320)
	if buf.Frames() != 320 {
		t.Fatalf("frames = %d, want 320", buf.Frames())
	}
}

func TestDuration(t *testing.T) {
	buf := NewBuffer(16000, 2)
	buf.PushFrame(samplesToBytes(make([]int16, 2*8000)), 8000)
	if d := buf.Duration(); d != 500*time.Millisecond {
		t.Fatalf("duration = %v, want 500ms", d)
	}
}

func TestFramesSpanCallbacks(t *testing.T) {
	buf := NewBuffer(16000, 2)
	// 3 samples per callback: frames straddle callback boundaries.
	for range 4 {
		buf.PushFrame(samplesToBytes(make([]int16, 3)), 1)
	}
	if buf.Frames() != 6 {
		t.Fatalf("frames = %d, want 6", buf.Frames())
	}
	buf.PushFrame(samplesToBytes(make([]int16, 1)), 0)
	if buf.Frames() != 6 {
		t.Fatalf("frames = %d after half a frame, want 6", buf.Frames())
	}
	if got := len(buf.Close()); got != 13 {
		t.Fatalf("samples = %d, want 13", got)
	}
}

func TestAmplitudeWindow(t *testing.T) {
	_, buf, capture := openFake(t)
	defer buf.Abort()

	capture.Feed(tone(encoder.SampleRate, 0.8))
	capture.FeedSilence(time.Second)

	recent := buf.AmplitudeWindow(500 * time.Millisecond)
	if len(recent) != 25 {
		t.Fatalf("levels = %d, want 25", len(recent))
	}
	for i, v := range recent {
		if v != 0 {
			t.Fatalf("level %d = %f, want 0 during silence", i, v)
		}
	}

	all := buf.AmplitudeWindow(time.Minute)
	if len(all) != 100 {
		t.Fatalf("levels = %d, want 100 for 2s of audio", len(all))
	}
	if all[0] < 0.4 {
		t.Errorf("first level = %f, expected loud tone", all[0])
	}

	recent[0] = 42
	if buf.AmplitudeWindow(500 * time.Millisecond)[0] == 42 {
		t.Fatal("window shares memory with the ring")
	}
}

func TestAmplitudeWindowBounded(t *testing.T) {
	buf := NewBuffer(16000, 1)
	buf.PushFrame(samplesToBytes(make([]int16, 12*16000)), 12*16000)
	levels := buf.AmplitudeWindow(time.Hour)
	if want := int(MaxWindow / LevelPeriod); len(levels) != want {
		t.Fatalf("levels = %d, want %d", len(levels), want)
	}
	if got := buf.AmplitudeWindow(0); len(got) != 0 {
		t.Fatalf("zero window returned %d levels", len(got))
	}
}

func TestRMS(t *testing.T) {
	if RMS(nil) != 0 {
		t.Fatal("RMS(nil) != 0")
	}
	full := []int16{-32768, -32768}
	if r := RMS(full); math.Abs(r-1) > 1e-9 {
		t.Fatalf("RMS = %f, want 1", r)
	}
}

func TestFindDevice(t *testing.T) {
	ctx := NewManualFakeContext()
	d, err := FindDevice(ctx, "")
	if err != nil || d != nil {
		t.Fatalf("empty name: %v, %v", d, err)
	}
	d, err = FindDevice(ctx, "FAK")
	if err != nil || d == nil || d.ID != "fake" {
		t.Fatalf("substring match: %v, %v", d, err)
	}
	if _, err := FindDevice(ctx, "usb mic"); !errors.Is(err, ErrDeviceUnavailable) {
		t.Fatalf("err = %v", err)
	}
}

func TestProbe(t *testing.T) {
	ctx := NewManualFakeContext()
	if err := Probe(ctx, nil); err != nil {
		t.Fatal(err)
	}
	if err := Probe(ctx, &DeviceInfo{ID: "gone", Name: "gone"}); !errors.Is(err, ErrDeviceUnavailable) {
		t.Fatalf("err = %v", err)
	}
	ctx.SetUnavailable(true)
	if err := Probe(ctx, nil); !errors.Is(err, ErrDeviceUnavailable) {
		t.Fatalf("err = %v", err)
	}
}

func TestIsBluetooth(t *testing.T) {
	cases := map[string]bool{
		"AirPods Pro":             true,
		"Built-in Microphone":     false,
		"WH-1000XM4 Hands-Free":   true,
		"alsa_input.pci-0000 Mic": false,
	}
	for name, want := range cases {
		if got := IsBluetooth(name); got != want {
			t.Errorf("IsBluetooth(%q) = %v, want %v", name, got, want)
		}
	}
}
