// Package capture supplies frames of identified feature points to the
// recorder. Sources replay previously captured frames from JSON lines files
// or SQLite frame logs; they never write.
package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/banshee-data/featurecloud/internal/pointcloud"
)

// ErrUnknownFormat is returned by Open for unrecognised file extensions.
var ErrUnknownFormat = errors.New("unknown capture format")

// TrackingState is the device tracking quality reported with each frame.
type TrackingState int

const (
	TrackingNormal TrackingState = iota
	TrackingLimited
	TrackingNotAvailable
)

func (s TrackingState) String() string {
	switch s {
	case TrackingNormal:
		return "normal"
	case TrackingLimited:
		return "limited"
	case TrackingNotAvailable:
		return "not_available"
	default:
		return fmt.Sprintf("TrackingState(%d)", int(s))
	}
}

// ParseTrackingState parses the text form of a TrackingState. An empty
// string is treated as normal, for sources that carry no tracking signal.
func ParseTrackingState(s string) (TrackingState, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "normal":
		return TrackingNormal, nil
	case "limited":
		return TrackingLimited, nil
	case "not_available", "notavailable", "unavailable":
		return TrackingNotAvailable, nil
	}
	return 0, fmt.Errorf("unknown tracking state %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (s TrackingState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *TrackingState) UnmarshalText(b []byte) error {
	v, err := ParseTrackingState(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Frame is one capture of the device's feature points.
type Frame struct {
	Seq       uint64
	Timestamp time.Time
	Tracking  TrackingState
	Features  []pointcloud.Feature
}

// Source yields frames in capture order. Next returns io.EOF after the last frame.
type Source interface {
	Next(ctx context.Context) (Frame, error)
	Close() error
}

// Open picks a Source implementation from the file extension.
func Open(path string) (Source, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jsonl", ".ndjson":
		src, err := OpenJSONL(path)
		if err != nil {
			return nil, err
		}
		return src, nil
	case ".db", ".sqlite", ".sqlite3":
		src, err := OpenSQLite(path)
		if err != nil {
			return nil, err
		}
		return src, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, path)
}

// SliceSource replays frames held in memory.
type SliceSource struct {
	frames []Frame
	next   int
}

// NewSliceSource returns a Source over frames.
func NewSliceSource(frames ...Frame) *SliceSource {
	return &SliceSource{frames: frames}
}

// Next returns the next frame or io.EOF.
func (s *SliceSource) Next(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}
	if s.next >= len(s.frames) {
		return Frame{}, io.EOF
	}
	fr := s.frames[s.next]
	s.next++
	return fr, nil
}

// Close is a no-op.
func (s *SliceSource) Close() error { return nil }
