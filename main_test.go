package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cadence/internal/catalog"
	"cadence/internal/scanner"
	"cadence/internal/stats"
)

func TestParseSettings(t *testing.T) {
	settings, err := parseSettings([]string{"shuffle=true", " repeat = 0"})
	require.NoError(t, err)
	assert.Equal(t, []catalog.Setting{
		{Key: "shuffle", Value: true},
		{Key: "repeat", Value: false},
	}, settings)

	_, err = parseSettings([]string{"shuffle"})
	assert.Error(t, err)
	_, err = parseSettings([]string{"shuffle=maybe"})
	assert.Error(t, err)
	_, err = parseSettings([]string{"=true"})
	assert.Error(t, err)
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "-", formatDuration(0))
	assert.Equal(t, "0:59", formatDuration(59_999))
	assert.Equal(t, "3:05", formatDuration(185_000))
	assert.Equal(t, "61:00", formatDuration(3_660_000))
}

func TestPrintSummaryOmitsZeroSections(t *testing.T) {
	var out bytes.Buffer
	printSummary(&out, scanner.Summary{
		FoldersScanned: 2,
		FilesSeen:      1200,
		Added:          3,
		Degraded:       1,
		Duration:       1500 * time.Millisecond,
	}, 50*1024*1024)

	text := out.String()
	assert.Contains(t, text, "1,200 seen")
	assert.Contains(t, text, "added:     3 (1 with default metadata)")
	assert.NotContains(t, text, "skipped")
	assert.NotContains(t, text, "cancelled")
	assert.Contains(t, text, "1.5s")
}

func TestRelativeTimeFallsBackToRawValue(t *testing.T) {
	assert.Equal(t, "yesterday-ish", relativeTime("yesterday-ish"))
	assert.NotEmpty(t, relativeTime(time.Now().UTC().Format(storedTimeLayout)))
}

func TestPrintOverviewSkipsEmptyTables(t *testing.T) {
	var out bytes.Buffer
	printOverview(&out, stats.Overview{})
	assert.Empty(t, out.String())

	printOverview(&out, stats.Overview{
		TopTracks:  []stats.TrackStat{{Title: "One", Artist: "Band", PlayCount: 1200}},
		TopArtists: []stats.ArtistStat{{Name: "Band", TrackCount: 2, PlayCount: 1200}},
	})
	text := out.String()
	assert.Contains(t, text, "TOP SONGS")
	assert.Contains(t, text, "TOP ARTISTS")
	assert.Contains(t, text, "1,200")
}
