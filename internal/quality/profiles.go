package quality

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Profile is a named bundle of outbound encoding targets.
type Profile struct {
	Name            string
	MaxBitrateBps   uint64
	TargetFPS       float64
	DownscaleFactor float64
	Label           string
}

// TargetKbps returns the bitrate cap in kilobits per second.
func (p Profile) TargetKbps() float64 {
	return float64(p.MaxBitrateBps) / 1000
}

// Profile names, ordered by degree of degradation.
const (
	Normal = "normal"
	Lite   = "lite"
	Ultra  = "ultra"
)

var ErrUnknownProfile = errors.New("unknown quality profile")

var profiles = map[string]Profile{
	Normal: {Name: Normal, MaxBitrateBps: 1_200_000, TargetFPS: 15, DownscaleFactor: 1.0, Label: "Normal"},
	Lite:   {Name: Lite, MaxBitrateBps: 300_000, TargetFPS: 8, DownscaleFactor: 1.5, Label: "Lite"},
	Ultra:  {Name: Ultra, MaxBitrateBps: 150_000, TargetFPS: 5, DownscaleFactor: 2.0, Label: "Ultra Lite"},
}

// ProfileFor returns the fixed profile called name.
func ProfileFor(name string) (Profile, error) {
	p, ok := profiles[name]
	if !ok {
		return Profile{}, fmt.Errorf("%w: %q", ErrUnknownProfile, name)
	}
	return p, nil
}

// Lookup is ProfileFor with a fallback to the normal profile.
func Lookup(name string) Profile {
	p, err := ProfileFor(name)
	if err != nil {
		zap.L().Warn("falling back to normal profile", zap.Error(err))
		return profiles[Normal]
	}
	return p
}

// Initial is the profile applied when sharing starts.
func Initial(liteMode bool) Profile {
	if liteMode {
		return profiles[Lite]
	}
	return profiles[Normal]
}

// Degrade returns the next profile down the order. Lite mode sends normal
// straight to ultra. Ultra stays at ultra.
func Degrade(current Profile, liteMode bool) Profile {
	switch current.Name {
	case Normal:
		if liteMode {
			return profiles[Ultra]
		}
		return profiles[Lite]
	case Lite:
		return profiles[Ultra]
	default:
		return profiles[Ultra]
	}
}

// Upgrade returns the next profile up the order, one level at a time. Lite
// mode caps the ceiling at lite.
func Upgrade(current Profile, liteMode bool) Profile {
	switch current.Name {
	case Ultra:
		return profiles[Lite]
	case Lite:
		if liteMode {
			return current
		}
		return profiles[Normal]
	default:
		return profiles[Normal]
	}
}
