package audio

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestPlayerConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  PlayerConfig
		wantErr bool
	}{
		{"default", DefaultPlayerConfig(), false},
		{"gtts rate", PlayerConfig{SampleRate: 24000, Channels: 1, BitDepth: 16, BufferSize: 4096}, false},
		{"stereo 48k", PlayerConfig{SampleRate: 48000, Channels: 2, BitDepth: 16, BufferSize: 8192}, false},
		{"odd rate", PlayerConfig{SampleRate: 11025, Channels: 1, BitDepth: 16, BufferSize: 4096}, true},
		{"three channels", PlayerConfig{SampleRate: 22050, Channels: 3, BitDepth: 16, BufferSize: 4096}, true},
		{"8 bit", PlayerConfig{SampleRate: 22050, Channels: 1, BitDepth: 8, BufferSize: 4096}, true},
		{"no buffer", PlayerConfig{SampleRate: 22050, Channels: 1, BitDepth: 16}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.config.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestClipDuration(t *testing.T) {
	tests := []struct {
		name                          string
		size, rate, channels, bitDepth int
		want                          time.Duration
	}{
		{"one second mono", 44100, 22050, 1, 16, time.Second},
		{"half second stereo", 48000, 24000, 2, 16, 500 * time.Millisecond},
		{"partial frame", 3, 22050, 1, 16, 0},
		{"bad format", 100, 0, 1, 16, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClipDuration(tt.size, tt.rate, tt.channels, tt.bitDepth); got != tt.want {
				t.Errorf("ClipDuration() = %v, want %v", got, tt.want)
			}
		})
	}
}

var (
	devicePlayer    *Player
	devicePlayerErr error
	devicePlayerMu  sync.Once
)

// getDevicePlayer shares one Player across tests; oto allows a single
// context per process.
func getDevicePlayer(t *testing.T) *Player {
	t.Helper()
	devicePlayerMu.Do(func() {
		devicePlayer, devicePlayerErr = NewPlayer(DefaultPlayerConfig())
	})
	if devicePlayerErr != nil {
		t.Skipf("no audio device: %v", devicePlayerErr)
	}
	_ = devicePlayer.Stop()
	return devicePlayer
}

func silence(d time.Duration) []byte {
	return make([]byte, int(d.Seconds()*22050)*2)
}

func TestPlayer_PlayWait(t *testing.T) {
	p := getDevicePlayer(t)

	if err := p.Play(nil); !errors.Is(err, ErrEmptyClip) {
		t.Errorf("Play(nil) error = %v", err)
	}

	if err := p.Play(silence(100 * time.Millisecond)); err != nil {
		t.Fatalf("Play() error = %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := p.Wait(ctx); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if p.IsPlaying() {
		t.Error("still playing after Wait()")
	}
}

func TestPlayer_StopReleasesWait(t *testing.T) {
	p := getDevicePlayer(t)

	if err := p.Play(silence(2 * time.Second)); err != nil {
		t.Fatalf("Play() error = %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- p.Wait(context.Background()) }()

	time.Sleep(20 * time.Millisecond)
	_ = p.Stop()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Wait() error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Stop() did not release Wait()")
	}
}

func TestPlayer_Volume(t *testing.T) {
	p := getDevicePlayer(t)

	if err := p.SetVolume(0.5); err != nil {
		t.Fatal(err)
	}
	if p.Volume() != 0.5 {
		t.Errorf("Volume() = %v", p.Volume())
	}
	if err := p.SetVolume(1.5); err == nil {
		t.Error("SetVolume(1.5) should fail")
	}
	_ = p.SetVolume(1)
}
