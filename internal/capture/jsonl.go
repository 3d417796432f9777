package capture

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/featurecloud/internal/pointcloud"
)

// maxLineBytes bounds a single JSON frame; dense frames carry a few thousand points.
const maxLineBytes = 16 * 1024 * 1024

// jsonFrame is the on-disk form of a frame. IDs and points are parallel
// arrays, matching how capture devices hand over feature points.
type jsonFrame struct {
	Seq      uint64        `json:"seq"`
	TS       time.Time     `json:"ts"`
	Tracking TrackingState `json:"tracking"`
	IDs      []uint64      `json:"ids"`
	Points   [][]float64   `json:"points"`
}

// JSONLSource reads one JSON frame per line.
type JSONLSource struct {
	r      *bufio.Reader
	closer io.Closer
	line   int
}

// OpenJSONL opens a JSON lines frame file.
func OpenJSONL(path string) (*JSONLSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open frame file: %w", err)
	}
	return &JSONLSource{r: bufio.NewReaderSize(f, 64*1024), closer: f}, nil
}

// NewJSONLSource reads frames from r. Close is a no-op unless r is an io.Closer.
func NewJSONLSource(r io.Reader) *JSONLSource {
	s := &JSONLSource{r: bufio.NewReaderSize(r, 64*1024)}
	if c, ok := r.(io.Closer); ok {
		s.closer = c
	}
	return s
}

// Next decodes the next non-blank line.
func (s *JSONLSource) Next(ctx context.Context) (Frame, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Frame{}, err
		}
		raw, err := s.readLine()
		if err != nil {
			return Frame{}, err
		}
		s.line++
		raw = bytes.TrimSpace(raw)
		if len(raw) == 0 {
			continue
		}

		var jf jsonFrame
		if err := json.Unmarshal(raw, &jf); err != nil {
			return Frame{}, fmt.Errorf("line %d: %w", s.line, err)
		}
		if len(jf.IDs) != len(jf.Points) {
			return Frame{}, fmt.Errorf("line %d: %d ids but %d points", s.line, len(jf.IDs), len(jf.Points))
		}

		fr := Frame{
			Seq:       jf.Seq,
			Timestamp: jf.TS,
			Tracking:  jf.Tracking,
			Features:  make([]pointcloud.Feature, len(jf.IDs)),
		}
		for i, id := range jf.IDs {
			p := jf.Points[i]
			if len(p) != 3 {
				return Frame{}, fmt.Errorf("line %d: point %d has %d components", s.line, i, len(p))
			}
			fr.Features[i] = pointcloud.Feature{ID: id, Position: r3.Vec{X: p[0], Y: p[1], Z: p[2]}}
		}
		return fr, nil
	}
}

// readLine returns the next line without its terminator, or io.EOF once
// the input is exhausted.
func (s *JSONLSource) readLine() ([]byte, error) {
	var buf []byte
	for {
		chunk, isPrefix, err := s.r.ReadLine()
		if err != nil {
			if err == io.EOF && len(buf) > 0 {
				return buf, nil
			}
			return nil, err
		}
		buf = append(buf, chunk...)
		if len(buf) > maxLineBytes {
			return nil, fmt.Errorf("line %d: exceeds %d bytes", s.line+1, maxLineBytes)
		}
		if !isPrefix {
			return buf, nil
		}
	}
}

// Close releases the underlying reader.
func (s *JSONLSource) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}
