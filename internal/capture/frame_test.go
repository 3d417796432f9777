package capture

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/featurecloud/internal/testutil"
)

func TestTrackingStateString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "normal", TrackingNormal.String())
	assert.Equal(t, "limited", TrackingLimited.String())
	assert.Equal(t, "not_available", TrackingNotAvailable.String())
	assert.Equal(t, "TrackingState(9)", TrackingState(9).String())
}

func TestParseTrackingState(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want TrackingState
	}{
		{"", TrackingNormal},
		{"normal", TrackingNormal},
		{" Limited ", TrackingLimited},
		{"not_available", TrackingNotAvailable},
		{"notAvailable", TrackingNotAvailable},
		{"unavailable", TrackingNotAvailable},
	}
	for _, tt := range tests {
		got, err := ParseTrackingState(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseTrackingState("relocalizing")
	assert.Error(t, err)
}

func TestTrackingStateJSON(t *testing.T) {
	t.Parallel()

	b, err := json.Marshal(TrackingLimited)
	require.NoError(t, err)
	assert.Equal(t, `"limited"`, string(b))

	var s TrackingState
	require.NoError(t, json.Unmarshal([]byte(`"not_available"`), &s))
	assert.Equal(t, TrackingNotAvailable, s)
	assert.Error(t, json.Unmarshal([]byte(`"bogus"`), &s))
}

func TestSliceSource(t *testing.T) {
	t.Parallel()

	src := NewSliceSource(Frame{Seq: 1}, Frame{Seq: 2})
	ctx := context.Background()

	fr, err := src.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), fr.Seq)
	fr, err = src.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), fr.Seq)
	_, err = src.Next(ctx)
	assert.ErrorIs(t, err, io.EOF)
	assert.NoError(t, src.Close())
}

func TestSliceSourceCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewSliceSource(Frame{Seq: 1}).Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOpenDispatchesByExtension(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	jsonlPath := filepath.Join(dir, "frames.jsonl")
	require.NoError(t, os.WriteFile(jsonlPath, []byte(`{"seq":1,"ids":[1],"points":[[1,2,3]]}`+"\n"), 0644))

	src, err := Open(jsonlPath)
	require.NoError(t, err)
	assert.IsType(t, &JSONLSource{}, src)
	fr, err := src.Next(context.Background())
	require.NoError(t, err)
	assert.Len(t, fr.Features, 1)
	require.NoError(t, src.Close())

	dbPath, db := testutil.NewFrameLog(t)
	testutil.InsertFrame(t, db, 1, testTime(0), "normal")
	src, err = Open(dbPath)
	require.NoError(t, err)
	assert.IsType(t, &SQLiteSource{}, src)
	require.NoError(t, src.Close())
}

func TestOpenErrors(t *testing.T) {
	t.Parallel()

	_, err := Open("capture.csv")
	assert.True(t, errors.Is(err, ErrUnknownFormat))

	src, err := Open(filepath.Join(t.TempDir(), "missing.jsonl"))
	assert.Error(t, err)
	assert.Nil(t, src)
}
