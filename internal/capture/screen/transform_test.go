package screen

import (
	"image"
	"testing"
	"time"

	"github.com/pion/mediadevices/pkg/io/video"
)

// frames yields blank frames of the given size and counts releases.
func frames(w, h int, released *int) video.Reader {
	return video.ReaderFunc(func() (image.Image, func(), error) {
		return image.NewRGBA(image.Rect(0, 0, w, h)), func() { *released++ }, nil
	})
}

func TestDownscale(t *testing.T) {
	tests := []struct {
		scale        float64
		wantW, wantH int
	}{
		{1.0, 1920, 1080},
		{1.5, 1280, 720},
		{2.0, 960, 540},
		{0.5, 1920, 1080},
	}
	for _, tt := range tests {
		k := &knobs{}
		k.setScale(tt.scale)
		var released int
		r := downscale(k)(frames(1920, 1080, &released))

		img, release, err := r.Read()
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		release()
		if b := img.Bounds(); b.Dx() != tt.wantW || b.Dy() != tt.wantH {
			t.Errorf("scale %v: got %dx%d, want %dx%d", tt.scale, b.Dx(), b.Dy(), tt.wantW, tt.wantH)
		}
		if released != 1 {
			t.Errorf("scale %v: source frame released %d times", tt.scale, released)
		}
	}
}

func TestEvenDim(t *testing.T) {
	for in, want := range map[float64]int{853.3: 852, 1: 2, 0: 2, 720: 720} {
		if got := evenDim(in); got != want {
			t.Errorf("evenDim(%v) = %d, want %d", in, got, want)
		}
	}
}

func TestThrottleDropsFrames(t *testing.T) {
	k := &knobs{}
	k.setFPS(5)

	clock := time.Unix(0, 0)
	// Source delivers a frame every 50ms; at 5 fps only every fourth passes.
	now := func() time.Time {
		clock = clock.Add(50 * time.Millisecond)
		return clock
	}

	var released int
	r := throttle(k, now)(frames(10, 10, &released))

	var emitted []time.Time
	for i := 0; i < 3; i++ {
		_, release, err := r.Read()
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		release()
		emitted = append(emitted, clock)
	}

	for i := 1; i < len(emitted); i++ {
		if gap := emitted[i].Sub(emitted[i-1]); gap != 200*time.Millisecond {
			t.Fatalf("gap %d = %v, want 200ms", i, gap)
		}
	}
	// 3 emitted + 6 dropped frames released.
	if released != 9 {
		t.Fatalf("released = %d, want 9", released)
	}
}

func TestThrottleKeepsFrameRate(t *testing.T) {
	k := &knobs{}
	k.setFPS(1)
	k.keepFrameRate.Store(true)

	now := func() time.Time { return time.Unix(0, 0) }

	var released int
	r := throttle(k, now)(frames(10, 10, &released))
	for i := 0; i < 5; i++ {
		if _, release, err := r.Read(); err != nil {
			t.Fatalf("Read: %v", err)
		} else {
			release()
		}
	}
	if released != 5 {
		t.Fatalf("released = %d, want every frame passed", released)
	}
}
