// Package recorder runs a feature-point capture session: it gates incoming
// frames, feeds them to a pointcloud.Aggregator and saves the configured
// aggregations into a dated output directory.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/featurecloud/internal/capture"
	"github.com/banshee-data/featurecloud/internal/config"
	"github.com/banshee-data/featurecloud/internal/fsutil"
	"github.com/banshee-data/featurecloud/internal/monitoring"
	"github.com/banshee-data/featurecloud/internal/pointcloud"
	"github.com/banshee-data/featurecloud/internal/preview"
	"github.com/banshee-data/featurecloud/internal/security"
	"github.com/banshee-data/featurecloud/internal/timeutil"
)

// Output layout. Directories are root/<day>/<time>; files are
// <stamp>_<mode>.xyz.
const (
	dayDirLayout  = "20060102"
	timeDirLayout = "15_04_05"
	stampLayout   = "2006_01_02_15_04_05"
)

// ErrRecording is returned by Save while a session is still running.
var ErrRecording = errors.New("recorder: session still recording, call Stop before Save")

// Stats summarises the current session.
type Stats struct {
	SessionID   string
	Recording   bool
	Frames      int // frames appended to the aggregator
	Skipped     int // frames dropped for tracking state
	Features    int // features offered, before duplicate suppression
	Identifiers int
	Points      int // observations retained after duplicate suppression
	Elapsed     time.Duration
}

// Recorder owns one Aggregator and the session around it.
type Recorder struct {
	cfg   *config.RecorderConfig
	agg   *pointcloud.Aggregator
	clock timeutil.Clock
	fs    fsutil.FileSystem
	rate  float64
	logf  func(format string, v ...any)

	mu        sync.Mutex
	sessionID uuid.UUID
	recording bool
	started   time.Time
	frames    int
	skipped   int
	features  int
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithClock sets the clock used for session timing and output names.
func WithClock(c timeutil.Clock) Option {
	return func(r *Recorder) { r.clock = c }
}

// WithFileSystem sets where Save writes.
func WithFileSystem(fsys fsutil.FileSystem) Option {
	return func(r *Recorder) { r.fs = fsys }
}

// WithPlaybackRate paces Run by the gaps between frame timestamps divided
// by rate. Zero or negative disables pacing (the default).
func WithPlaybackRate(rate float64) Option {
	return func(r *Recorder) { r.rate = rate }
}

// New creates a Recorder. A nil cfg uses the defaults.
func New(cfg *config.RecorderConfig, opts ...Option) *Recorder {
	if cfg == nil {
		cfg = config.EmptyRecorderConfig()
	}
	r := &Recorder{
		cfg:   cfg,
		agg:   pointcloud.NewAggregator(),
		clock: timeutil.RealClock{},
		fs:    fsutil.OSFileSystem{},
		logf:  monitoring.Prefixed("[recorder] "),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Aggregator exposes the underlying store for direct queries.
func (r *Recorder) Aggregator() *pointcloud.Aggregator { return r.agg }

// Start clears previous data and begins a new session.
func (r *Recorder) Start() uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.agg.Reset()
	r.sessionID = uuid.New()
	r.logf = monitoring.Prefixed(fmt.Sprintf("[recorder %s] ", r.sessionID.String()[:8]))
	r.recording = true
	r.started = r.clock.Now()
	r.frames, r.skipped, r.features = 0, 0, 0
	r.logf("session started")
	return r.sessionID
}

// Stop ends the session. Recorded data stays available to Save.
func (r *Recorder) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording {
		return
	}
	r.recording = false
	r.logf("session stopped after %d frames (%d skipped), %d identifiers",
		r.frames, r.skipped, r.agg.Len())
}

// Record appends the frame's features if a session is running and, when
// required, the frame was captured with normal tracking. It reports whether
// the frame was taken.
func (r *Recorder) Record(fr capture.Frame) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.recording {
		return false
	}
	if r.cfg.GetRequireNormalTracking() && fr.Tracking != capture.TrackingNormal {
		r.skipped++
		return false
	}
	r.agg.Append(fr.Features)
	r.frames++
	r.features += len(fr.Features)
	return true
}

// Stats returns a snapshot of the session counters.
func (r *Recorder) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := Stats{
		Recording:   r.recording,
		Frames:      r.frames,
		Skipped:     r.skipped,
		Features:    r.features,
		Identifiers: r.agg.Len(),
		Points:      r.agg.PointCount(),
	}
	if r.sessionID != uuid.Nil {
		s.SessionID = r.sessionID.String()
		s.Elapsed = r.clock.Since(r.started)
	}
	return s
}

// Run starts a session, records every frame from src and stops. It returns
// nil when src is exhausted, ctx.Err() if cancelled, or the first source
// error. Data recorded before a failure is kept.
func (r *Recorder) Run(ctx context.Context, src capture.Source) error {
	r.Start()
	defer r.Stop()

	var last time.Time
	for {
		fr, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if r.rate > 0 && !last.IsZero() && fr.Timestamp.After(last) {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-r.clock.After(time.Duration(float64(fr.Timestamp.Sub(last)) / r.rate)):
			}
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if !fr.Timestamp.IsZero() {
			last = fr.Timestamp
		}
		r.Record(fr)
	}
}

// Save exports every configured mode into root/<yyyyMMdd>/<HH_mm_ss>/ and
// returns the written paths. Each mode's .xyz comes in mode order, followed
// by its .html and .png when previews are enabled and the result is
// non-empty. Save fails with ErrRecording while a session is running; all
// modes are computed from the same store state.
func (r *Recorder) Save(root string) ([]string, error) {
	now := r.clock.Now()
	dir := filepath.Join(root, now.Format(dayDirLayout), now.Format(timeDirLayout))
	if err := security.ContainedIn(root, dir); err != nil {
		return nil, err
	}

	zscore := r.cfg.GetZScore()
	modes := r.cfg.GetModes()
	results, err := r.snapshot(modes, zscore)
	if err != nil {
		return nil, err
	}

	if info, err := r.fs.Stat(dir); err == nil && !info.IsDir() {
		return nil, fmt.Errorf("output path %s already exists as a regular file", dir)
	}
	if err := r.fs.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}

	stamp := now.Format(stampLayout)
	var written []string
	for i, mode := range modes {
		base := filepath.Join(dir, OutputName(stamp, mode, zscore))
		if err := security.ContainedIn(root, base); err != nil {
			return written, err
		}

		points := results[i]
		path := base + pointcloud.FileExtension
		if err := pointcloud.ExportXYZ(r.fs, path, points); err != nil {
			return written, err
		}
		written = append(written, path)

		if !r.cfg.GetPreview() || len(points) == 0 {
			continue
		}
		previews, err := r.writePreviews(base, mode, points)
		written = append(written, previews...)
		if err != nil {
			return written, err
		}
	}
	return written, nil
}

// snapshot aggregates every mode under the session lock so a concurrent
// Start cannot reset the store between modes.
func (r *Recorder) snapshot(modes []pointcloud.Mode, zscore float64) ([][]r3.Vec, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.recording {
		return nil, ErrRecording
	}
	results := make([][]r3.Vec, len(modes))
	for i, mode := range modes {
		results[i] = r.agg.Aggregate(mode, zscore)
	}
	return results, nil
}

// OutputName is the file name, without extension, used for one mode. The
// z-score is only spelled out when it differs from the default.
func OutputName(stamp string, mode pointcloud.Mode, zscore float64) string {
	name := stamp + "_" + mode.String()
	if mode == pointcloud.ModeDistanceFilter && zscore != pointcloud.DefaultZScore {
		name += "_" + strconv.FormatFloat(zscore, 'g', -1, 64)
	}
	return name
}

func (r *Recorder) writePreviews(base string, mode pointcloud.Mode, points []r3.Vec) ([]string, error) {
	title := fmt.Sprintf("%s (%s, %d points)", filepath.Base(base), mode, len(points))
	renders := []struct {
		ext    string
		render func(io.Writer, string, []r3.Vec) error
	}{
		{".html", preview.WriteHTML},
		{".png", preview.WritePNG},
	}

	var written []string
	for _, rd := range renders {
		path := base + rd.ext
		if err := r.writeFile(path, func(w io.Writer) error { return rd.render(w, title, points) }); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}

func (r *Recorder) writeFile(path string, write func(io.Writer) error) error {
	f, err := r.fs.Create(path)
	if err != nil {
		return fmt.Errorf("failed to open %s for writing: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}
