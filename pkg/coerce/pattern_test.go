package coerce

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapupsert/pkg/core"
)

func TestTranslatePattern(t *testing.T) {
	tests := []struct {
		pattern string
		want    string
	}{
		{"yyyy-MM-dd", "2006-01-02"},
		{"dd/MM/yyyy HH:mm:ss", "02/01/2006 15:04:05"},
		{"yyyy-MM-dd'T'HH:mm:ss.SSSXXX", "2006-01-02T15:04:05.999Z07:00"},
		{"yy-M-d h:m:s a", "06-1-2 3:4:5 PM"},
		{"EEE, d MMM yyyy HH:mm Z", "Mon, 2 Jan 2006 15:04 -0700"},
		{"EEEE MMMM dd", "Monday January 02"},
		{"HH:mm:ss z", "15:04:05 MST"},
		{"'at' HH 'o''clock'", "at 15 o'clock"},
		{"HH''mm", "15'04"},
		{"'''quoted''' yyyy", "'quoted' 2006"},
		{"2006-01-02 15:04", "2006-01-02 15:04"},
	}

	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			got, err := TranslatePattern(tt.pattern)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTranslatePattern_Errors(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		errMsg  string
	}{
		{"empty", "", "empty date pattern"},
		{"unsupported token", "yyyy-QQ", `unsupported token "QQ"`},
		{"unterminated quote", "yyyy'T", "unterminated quote"},
		{"unterminated after escaped quote", "HH 'o''clock", "unterminated quote"},
		{"fraction without separator", "HH:mm:ssSSS", "fraction of second"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := TranslatePattern(tt.pattern)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestCoerce_QuotedLiteralInPattern(t *testing.T) {
	c, err := New(Formats{Time: "HH 'o''clock'", Timestamp: "yyyy-MM-dd 'at' HH 'o''clock'"})
	require.NoError(t, err)

	got, err := c.Coerce("15 o'clock", col("t", core.TypeTime))
	require.NoError(t, err)
	assert.Equal(t, "15:00:00", got.V)

	got, err = c.Coerce("2024-03-01 at 09 o'clock", col("ts", core.TypeTimestamp))
	require.NoError(t, err)
	assert.True(t, time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC).Equal(got.V.(time.Time)))
}
