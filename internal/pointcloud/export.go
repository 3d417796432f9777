package pointcloud

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/featurecloud/internal/fsutil"
	"github.com/banshee-data/featurecloud/internal/monitoring"
)

// FileExtension is the extension used for exported point lists.
const FileExtension = ".xyz"

// WriteXYZ writes one "x y z" line per point using the shortest
// representation that round-trips each coordinate. No header is written.
func WriteXYZ(w io.Writer, points []r3.Vec) error {
	bw := bufio.NewWriter(w)
	buf := make([]byte, 0, 72)
	for _, p := range points {
		buf = buf[:0]
		buf = strconv.AppendFloat(buf, p.X, 'g', -1, 64)
		buf = append(buf, ' ')
		buf = strconv.AppendFloat(buf, p.Y, 'g', -1, 64)
		buf = append(buf, ' ')
		buf = strconv.AppendFloat(buf, p.Z, 'g', -1, 64)
		buf = append(buf, '\n')
		if _, err := bw.Write(buf); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ExportXYZ writes points to path on fsys, replacing any existing file.
// An empty collection produces an empty file.
func ExportXYZ(fsys fsutil.FileSystem, path string, points []r3.Vec) error {
	f, err := fsys.Create(path)
	if err != nil {
		return fmt.Errorf("failed to open %s for writing: %w", path, err)
	}
	if err := WriteXYZ(f, points); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	monitoring.Logf("Exported %d points to %s", len(points), path)
	return nil
}

// ReadXYZ parses a point list written by WriteXYZ. Blank lines are skipped;
// any other line must hold exactly three numbers.
func ReadXYZ(r io.Reader) ([]r3.Vec, error) {
	var out []r3.Vec
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) != 3 {
			return nil, fmt.Errorf("line %d: expected 3 values, got %d", line, len(fields))
		}
		var v [3]float64
		for i, s := range fields {
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			v[i] = f
		}
		out = append(out, r3.Vec{X: v[0], Y: v[1], Z: v[2]})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
