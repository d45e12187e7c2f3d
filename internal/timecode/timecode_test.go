package timecode

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNow(t *testing.T) {
	ref := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

	got, err := Parse("now", ref, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, ref, got)

	got, err = Parse("NOW", ref, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, ref, got)
}

func TestParseUnix(t *testing.T) {
	got, err := Parse("u1700000000", time.Now(), time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), got)
}

func TestParseRelative(t *testing.T) {
	ref := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

	tests := map[string]time.Time{
		"2days":        ref.Add(-2 * 24 * time.Hour),
		"3hours":       ref.Add(-3 * time.Hour),
		"2days3hours":  ref.Add(-2*24*time.Hour - 3*time.Hour),
		"1week":        ref.Add(-7 * 24 * time.Hour),
		"30minutes":    ref.Add(-30 * time.Minute),
		"45seconds":    ref.Add(-45 * time.Second),
		"1 day 2 hour": ref.Add(-24*time.Hour - 2*time.Hour),
	}

	for expr, want := range tests {
		t.Run(expr, func(t *testing.T) {
			got, err := Parse(expr, ref, time.UTC)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestParseISO(t *testing.T) {
	ref := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

	got, err := Parse("2024-01-02T03:04:05Z", ref, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), got)

	got, err = Parse("2024-01-02 03:04:05", ref, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), got)

	got, err = Parse("2024-01-02", ref, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), got)
}

func TestParseISONaiveHonorsHistoricalOffset(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}

	ref := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

	// 2024-01-15 is EST (UTC-5); 2024-07-15 is EDT (UTC-4). A naive
	// timestamp must resolve using the offset in effect at that historical
	// instant, not whatever offset loc currently has.
	winter, err := Parse("2024-01-15T10:00:00", ref, loc)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 15, 15, 0, 0, 0, time.UTC), winter)

	summer, err := Parse("2024-07-15T10:00:00", ref, loc)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 7, 15, 14, 0, 0, 0, time.UTC), summer)
}

func TestParseInvalid(t *testing.T) {
	_, err := Parse("not a time", time.Now(), time.UTC)
	assert.ErrorIs(t, err, ErrInvalidExpression)

	_, err = Parse("", time.Now(), time.UTC)
	assert.ErrorIs(t, err, ErrInvalidExpression)
}

func TestFormatAndParseArtifactRoundTrip(t *testing.T) {
	in := time.Date(2024, 3, 15, 9, 30, 45, 0, time.UTC)

	s := FormatArtifact(in)
	assert.Equal(t, "20240315093045", s)

	out, ok := ParseArtifact(s)
	require.True(t, ok)
	assert.Equal(t, in, out)
}

func TestFormatArtifactConvertsToUTC(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}

	local := time.Date(2024, 1, 15, 10, 0, 0, 0, loc)
	assert.Equal(t, "20240115150000", FormatArtifact(local))
}

func TestParseArtifactRejectsMalformed(t *testing.T) {
	_, ok := ParseArtifact("short")
	assert.False(t, ok)

	_, ok = ParseArtifact("2024031509304X")
	assert.False(t, ok)

	_, ok = ParseArtifact("202403150930450")
	assert.False(t, ok)
}
