// Package testutil provides shared test utilities and fixtures.
//
// This package centralises the frame-log fixtures and point comparisons
// used by the capture, recorder and pointcloud tests.
package testutil

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"gonum.org/v1/gonum/spatial/r3"
	_ "modernc.org/sqlite"
)

// Tolerance is the default absolute tolerance for point comparisons.
const Tolerance = 1e-9

// frameLogSchema matches the tables read by capture.SQLiteSource.
var frameLogSchema = []string{
	`CREATE TABLE frames (
		seq          INTEGER PRIMARY KEY,
		timestamp_ns INTEGER,
		tracking     TEXT
	)`,
	`CREATE TABLE frame_features (
		seq        INTEGER NOT NULL REFERENCES frames(seq),
		feature_id INTEGER NOT NULL,
		x          REAL NOT NULL,
		y          REAL NOT NULL,
		z          REAL NOT NULL
	)`,
}

// FeatureRow is one frame_features row.
type FeatureRow struct {
	ID      int64
	X, Y, Z float64
}

// NewFrameLog creates an empty frame log database in a temp dir and returns
// its path and an open handle. The handle is closed when the test ends.
func NewFrameLog(t testing.TB) (string, *sql.DB) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "frames.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("failed to open frame log: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	for _, stmt := range frameLogSchema {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("failed to create frame log schema: %v", err)
		}
	}
	return path, db
}

// InsertFrame adds a frame and its features. A zero ts is stored as NULL.
func InsertFrame(t testing.TB, db *sql.DB, seq int64, ts time.Time, tracking string, features ...FeatureRow) {
	t.Helper()
	var tsNs sql.NullInt64
	if !ts.IsZero() {
		tsNs = sql.NullInt64{Int64: ts.UnixNano(), Valid: true}
	}
	if _, err := db.Exec(`INSERT INTO frames (seq, timestamp_ns, tracking) VALUES (?, ?, ?)`,
		seq, tsNs, tracking); err != nil {
		t.Fatalf("failed to insert frame %d: %v", seq, err)
	}
	for _, f := range features {
		if _, err := db.Exec(`INSERT INTO frame_features (seq, feature_id, x, y, z) VALUES (?, ?, ?, ?, ?)`,
			seq, f.ID, f.X, f.Y, f.Z); err != nil {
			t.Fatalf("failed to insert feature %d of frame %d: %v", f.ID, seq, err)
		}
	}
}

// Vec is shorthand for an r3.Vec literal.
func Vec(x, y, z float64) r3.Vec {
	return r3.Vec{X: x, Y: y, Z: z}
}

// AssertVecsApprox fails the test if got differs from want by more than
// Tolerance in any coordinate. Order matters.
func AssertVecsApprox(t testing.TB, want, got []r3.Vec) {
	t.Helper()
	if diff := cmp.Diff(want, got, cmpopts.EquateApprox(0, Tolerance), cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("points mismatch (-want +got):\n%s", diff)
	}
}
