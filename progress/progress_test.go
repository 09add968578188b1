package progress

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhcgn/mail-graph/stats"
)

func TestNew_Disabled(t *testing.T) {
	for _, tc := range []struct {
		name  string
		total int
		level string
	}{
		{name: "debug level", total: 10, level: "debug"},
		{name: "nothing to count", total: 0, level: "info"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			bar := New(tc.total, tc.level, io.Discard)
			assert.False(t, bar.enabled)
			assert.Nil(t, bar.pb)

			bar.Update(stats.Event{Type: stats.EventTypeScanned})
			bar.Stop(1, 1, nil)
		})
	}
}

func TestBar_Update(t *testing.T) {
	bar := New(5, "info", io.Discard)
	require.True(t, bar.enabled)
	require.NotNil(t, bar.pb)

	bar.Update(stats.Event{Type: stats.EventTypeScanned})
	bar.Update(stats.Event{Type: stats.EventTypeParsed})
	bar.Update(stats.Event{Type: stats.EventTypeScanned})
	assert.Equal(t, 2, bar.pb.Current)

	bar.Stop(3, 2, nil)
	assert.Equal(t, 5, bar.pb.Current)
	assert.False(t, bar.pb.IsActive)
}

func TestBar_StopAfterFailedScan(t *testing.T) {
	bar := New(5, "info", io.Discard)
	require.True(t, bar.enabled)

	bar.Update(stats.Event{Type: stats.EventTypeScanned})
	bar.Stop(1, 0, errors.New("walk corpus root: permission denied"))

	assert.False(t, bar.pb.IsActive)
	assert.Equal(t, 1, bar.pb.Current, "a failed scan must not be shown as complete")

	bar.Stop(1, 0, nil)
	assert.Equal(t, 1, bar.pb.Current, "stopping twice is a no-op")
}
