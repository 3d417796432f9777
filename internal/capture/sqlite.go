package capture

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"time"

	"gonum.org/v1/gonum/spatial/r3"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/featurecloud/internal/pointcloud"
)

// frameLogQuery walks every frame with its features in capture order.
// Frames without features still produce one row with NULL feature columns.
const frameLogQuery = `
	SELECT f.seq, f.timestamp_ns, f.tracking,
	       ff.feature_id, ff.x, ff.y, ff.z
	FROM frames f
	LEFT JOIN frame_features ff ON ff.seq = f.seq
	ORDER BY f.seq, ff.rowid
`

// SQLiteSource replays a frame log database with tables
//
//	frames(seq INTEGER PRIMARY KEY, timestamp_ns INTEGER, tracking TEXT)
//	frame_features(seq INTEGER, feature_id INTEGER, x REAL, y REAL, z REAL)
//
// Feature IDs are stored as SQLite's signed 64-bit integers and reinterpreted
// as uint64.
type SQLiteSource struct {
	db      *sql.DB
	rows    *sql.Rows
	pending *frameLogRow
	done    bool
	ownsDB  bool
}

type frameLogRow struct {
	seq         int64
	timestampNs sql.NullInt64
	tracking    sql.NullString
	featureID   sql.NullInt64
	x, y, z     sql.NullFloat64
}

// OpenSQLite opens a frame log read-only.
func OpenSQLite(path string) (*SQLiteSource, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open frame log: %w", err)
	}
	// A single connection keeps the query_only pragma in force.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA query_only = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set frame log read-only: %w", err)
	}
	return &SQLiteSource{db: db, ownsDB: true}, nil
}

// NewSQLiteSource wraps an already open database. The caller keeps
// ownership of db; Close only releases the cursor.
func NewSQLiteSource(db *sql.DB) *SQLiteSource {
	return &SQLiteSource{db: db}
}

// Next returns the next frame, grouping consecutive rows with the same seq.
func (s *SQLiteSource) Next(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}
	if s.done {
		return Frame{}, io.EOF
	}
	if s.rows == nil {
		rows, err := s.db.QueryContext(ctx, frameLogQuery)
		if err != nil {
			return Frame{}, fmt.Errorf("failed to query frame log: %w", err)
		}
		s.rows = rows
	}

	first := s.pending
	s.pending = nil
	if first == nil {
		row, err := s.scan()
		if err != nil {
			return Frame{}, err
		}
		first = row
	}

	fr, err := newFrameFromRow(first)
	if err != nil {
		return Frame{}, err
	}
	for {
		row, err := s.scan()
		if err == io.EOF {
			return fr, nil
		}
		if err != nil {
			return Frame{}, err
		}
		if row.seq != first.seq {
			s.pending = row
			return fr, nil
		}
		if err := addFeature(&fr, row); err != nil {
			return Frame{}, err
		}
	}
}

func (s *SQLiteSource) scan() (*frameLogRow, error) {
	if !s.rows.Next() {
		s.done = true
		if err := s.rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to read frame log: %w", err)
		}
		return nil, io.EOF
	}
	var row frameLogRow
	if err := s.rows.Scan(&row.seq, &row.timestampNs, &row.tracking,
		&row.featureID, &row.x, &row.y, &row.z); err != nil {
		return nil, fmt.Errorf("failed to scan frame log row: %w", err)
	}
	return &row, nil
}

func newFrameFromRow(row *frameLogRow) (Frame, error) {
	tracking, err := ParseTrackingState(row.tracking.String)
	if err != nil {
		return Frame{}, fmt.Errorf("frame %d: %w", row.seq, err)
	}
	fr := Frame{
		Seq:      uint64(row.seq),
		Tracking: tracking,
	}
	if row.timestampNs.Valid {
		fr.Timestamp = time.Unix(0, row.timestampNs.Int64).UTC()
	}
	if err := addFeature(&fr, row); err != nil {
		return Frame{}, err
	}
	return fr, nil
}

// addFeature appends the row's feature, if any. A feature with a missing
// coordinate is an error rather than a point at the origin.
func addFeature(fr *Frame, row *frameLogRow) error {
	if !row.featureID.Valid {
		return nil
	}
	if !row.x.Valid || !row.y.Valid || !row.z.Valid {
		return fmt.Errorf("frame %d: feature %d has NULL coordinates", row.seq, row.featureID.Int64)
	}
	fr.Features = append(fr.Features, pointcloud.Feature{
		ID:       uint64(row.featureID.Int64),
		Position: r3.Vec{X: row.x.Float64, Y: row.y.Float64, Z: row.z.Float64},
	})
	return nil
}

// Close releases the cursor and, for sources created by OpenSQLite, the database.
func (s *SQLiteSource) Close() error {
	s.done = true
	if s.rows != nil {
		s.rows.Close()
		s.rows = nil
	}
	if s.ownsDB {
		s.ownsDB = false
		return s.db.Close()
	}
	return nil
}
