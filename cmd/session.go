package cmd

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pion/webrtc/v4"
	"go.uber.org/zap"

	"github.com/BioHazard786/liteshare/internal/capture"
	"github.com/BioHazard786/liteshare/internal/capture/screen"
	"github.com/BioHazard786/liteshare/internal/config"
	"github.com/BioHazard786/liteshare/internal/logging"
	"github.com/BioHazard786/liteshare/internal/record"
	"github.com/BioHazard786/liteshare/internal/session"
	"github.com/BioHazard786/liteshare/internal/telemetry"
	"github.com/BioHazard786/liteshare/internal/transport"
	"github.com/BioHazard786/liteshare/internal/ui"
)

const rejoinMaxElapsed = 2 * time.Minute

type sessionOptions struct {
	title string
	// share starts the screen share right after joining.
	share bool
	// record is the IVF file the first remote track is written to.
	record string
	rejoin bool
}

// sessionStats collects what the summary needs. Fields are written from the
// coordinator loop and pion goroutines.
type sessionStats struct {
	transitions atomic.Int64
	profile     atomic.Value
	recorded    atomic.Int64
}

func (s *sessionStats) observe(snap telemetry.Snapshot) {
	prev, _ := s.profile.Swap(snap.Profile).(string)
	if prev != "" && prev != snap.Profile {
		s.transitions.Add(1)
	}
}

func runSession(ctx context.Context, cfg *config.Config, opts sessionOptions) error {
	log := logging.Named("session")

	var (
		dash       *ui.Dashboard
		stats      sessionStats
		recordOnce sync.Once
		rejoinCh   = make(chan struct{}, 1)
	)

	obs := session.Observer{
		OnStatus: func(s session.Status) {
			dash.SetStatus(s)
			if opts.rejoin && s.Dropped() {
				select {
				case rejoinCh <- struct{}{}:
				default:
				}
			}
		},
		Telemetry: telemetry.SinkFunc(func(s telemetry.Snapshot) {
			stats.observe(s)
			dash.SetLocalQuality(s)
		}),
		OnRemoteTrack: func(track *webrtc.TrackRemote) {
			dash.SetRemoteVideo(track.Codec().MimeType)
			w := record.Discard
			recordOnce.Do(func() {
				if opts.record == "" {
					return
				}
				ivf, err := record.OpenIVF(opts.record)
				if err != nil {
					dash.Notice(fmt.Sprintf("%s recording disabled: %v", ui.IconWarning, err))
					return
				}
				w = ivf
				dash.Notice(fmt.Sprintf("%s recording to %s", ui.IconRecord, opts.record))
			})
			go func() {
				n, err := record.Drain(track, w, log)
				if err != nil {
					log.Debug("remote track ended", zap.Error(err))
				}
				if w != record.Discard {
					stats.recorded.Add(int64(n))
				}
			}()
		},
		OnRemoteCleared: func() {
			dash.SetRemoteVideo("")
		},
		OnRemoteTelemetry: func(s telemetry.Snapshot) {
			dash.SetPeerQuality(s)
		},
	}

	coord := session.New(session.Config{
		Endpoint: cfg.SignalingURL(),
		Transport: transport.Config{
			ICEServers:    cfg.ICEServers(),
			ForceRelay:    cfg.ForceRelay,
			LoggerFactory: logging.NewPionFactory(nil),
		},
		Capture:        screen.Source,
		CaptureOptions: capture.Options{FrameRate: 15},
		LiteMode:       cfg.LiteMode,
		StatsInterval:  cfg.StatsInterval,
		Logger:         log,
	}, obs)

	dash = ui.NewDashboard(opts.title, ui.Actions{
		ToggleShare: func(share bool) error {
			if share {
				return coord.StartShare(ctx)
			}
			return coord.StopShare(ctx)
		},
		ToggleLite: func(lite bool) error {
			return coord.SetLiteMode(ctx, lite)
		},
		HangUp: func() error {
			return coord.HangUp(ctx)
		},
	})

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	loopDone := make(chan error, 1)
	go func() { loopDone <- coord.Run(runCtx) }()
	shutdown := func() {
		cancel()
		<-loopDone
	}

	stopSpinner := ui.RunConnectionSpinner("Connecting to relay...")
	err := coord.Join(ctx, cfg.Room)
	stopSpinner()
	if err != nil {
		shutdown()
		return err
	}
	ui.PrintSuccessf("Joined room %s", ui.BoldStyle.Render(cfg.Room))

	if opts.share {
		if err := coord.StartShare(ctx); err != nil {
			shutdown()
			return err
		}
	}

	started := time.Now()
	go rejoinLoop(runCtx, coord, cfg.Room, rejoinCh, log)
	go func() {
		<-runCtx.Done()
		dash.Quit()
	}()

	dash.SetStatus(coord.Status())
	if err := dash.Run(); err != nil {
		log.Warn("dashboard", zap.Error(err))
	}
	shutdown()

	profile, _ := stats.profile.Load().(string)
	recording := ""
	if opts.record != "" && stats.recorded.Load() > 0 {
		recording = fmt.Sprintf("%s (%d packets)", opts.record, stats.recorded.Load())
	}
	fmt.Println()
	ui.RenderSessionSummary(ui.SessionSummary{
		Room:         cfg.Room,
		Duration:     time.Since(started),
		FinalProfile: profile,
		Transitions:  int(stats.transitions.Load()),
		Recording:    recording,
	})
	return nil
}

// rejoinLoop reconnects to the relay with exponential backoff each time the
// connection drops.
func rejoinLoop(ctx context.Context, coord *session.Coordinator, room string, drops <-chan struct{}, log *zap.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-drops:
		}

		b := backoff.NewExponentialBackOff()
		b.MaxElapsedTime = rejoinMaxElapsed

		attempt := 0
		err := backoff.Retry(func() error {
			attempt++
			log.Info("rejoining", zap.String("room", room), zap.Int("attempt", attempt))
			return coord.Join(ctx, room)
		}, backoff.WithContext(b, ctx))
		if err != nil {
			log.Warn("rejoin gave up", zap.Error(err))
		}
	}
}
