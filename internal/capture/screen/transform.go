package screen

import (
	"image"
	"math"
	"sync/atomic"
	"time"

	"github.com/pion/mediadevices/pkg/io/video"
	"golang.org/x/image/draw"
)

// knobs holds the runtime-adjustable frame shaping parameters.
type knobs struct {
	scale         atomic.Uint64 // math.Float64bits of the downscale factor
	fps           atomic.Uint64 // math.Float64bits of the target frame rate
	keepFrameRate atomic.Bool
}

func (k *knobs) setScale(s float64) { k.scale.Store(math.Float64bits(s)) }
func (k *knobs) getScale() float64  { return math.Float64frombits(k.scale.Load()) }
func (k *knobs) setFPS(f float64)   { k.fps.Store(math.Float64bits(f)) }
func (k *knobs) getFPS() float64    { return math.Float64frombits(k.fps.Load()) }

// downscale shrinks each frame by the current scale factor.
func downscale(k *knobs) video.TransformFunc {
	return func(r video.Reader) video.Reader {
		return video.ReaderFunc(func() (image.Image, func(), error) {
			img, release, err := r.Read()
			if err != nil {
				return nil, func() {}, err
			}

			factor := k.getScale()
			if factor <= 1 {
				return img, release, nil
			}

			b := img.Bounds()
			w := evenDim(float64(b.Dx()) / factor)
			h := evenDim(float64(b.Dy()) / factor)
			dst := image.NewRGBA(image.Rect(0, 0, w, h))
			draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
			safeRelease(release)
			return dst, func() {}, nil
		})
	}
}

// evenDim rounds down to an even size of at least 2, as VP8 prefers.
func evenDim(v float64) int {
	n := int(v) &^ 1
	if n < 2 {
		return 2
	}
	return n
}

// throttle drops frames that arrive faster than the target frame rate.
func throttle(k *knobs, now func() time.Time) video.TransformFunc {
	return func(r video.Reader) video.Reader {
		var last time.Time
		return video.ReaderFunc(func() (image.Image, func(), error) {
			for {
				img, release, err := r.Read()
				if err != nil {
					return nil, func() {}, err
				}

				fps := k.getFPS()
				if fps <= 0 || k.keepFrameRate.Load() {
					return img, release, nil
				}

				t := now()
				minGap := time.Duration(float64(time.Second) / fps)
				if last.IsZero() || t.Sub(last) >= minGap {
					last = t
					return img, release, nil
				}
				safeRelease(release)
			}
		})
	}
}

func safeRelease(release func()) {
	if release != nil {
		release()
	}
}
