package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"trace":   LevelTrace,
		"DEBUG":   LevelDebug,
		"info":    LevelInfo,
		"warn":    LevelWarn,
		"warning": LevelWarn,
		"error":   LevelError,
		"off":     LevelOff,
		" Info ":  LevelInfo,
	}

	for input, want := range cases {
		t.Run(input, func(t *testing.T) {
			got, err := ParseLevel(input)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}

	_, err := ParseLevel("verbose")
	assert.Error(t, err)
}

func TestLevelString(t *testing.T) {
	for _, l := range []Level{LevelTrace, LevelDebug, LevelInfo, LevelWarn, LevelError, LevelOff} {
		parsed, err := ParseLevel(l.String())
		require.NoError(t, err)
		assert.Equal(t, l, parsed)
	}
}

func TestKlogLogger_Enabled(t *testing.T) {
	l := NewKlog(LevelWarn)

	assert.False(t, l.Enabled(LevelDebug))
	assert.False(t, l.Enabled(LevelInfo))
	assert.True(t, l.Enabled(LevelWarn))
	assert.True(t, l.Enabled(LevelError))

	l.SetLevel(LevelOff)
	assert.False(t, l.Enabled(LevelError))
	assert.Equal(t, LevelOff, l.Level())

	// Filtered calls must not panic or emit
	l.Debugf("hidden %d", 1)
	l.Errorf("hidden %d", 2)
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil))

	k := NewKlog(LevelInfo)
	assert.Equal(t, Logger(k), OrNop(k))

	Nop().Infof("discarded %s", "message")
}
