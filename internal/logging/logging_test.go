package logging

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	require.Equal(t, zerolog.InfoLevel, ParseLevel(""))
	require.Equal(t, zerolog.DebugLevel, ParseLevel("DEBUG"))
	require.Equal(t, zerolog.WarnLevel, ParseLevel(" warn "))
	require.Equal(t, zerolog.InfoLevel, ParseLevel("loud"))
}

func TestNew_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, zerolog.InfoLevel)

	logger.Debug().Msg("hidden")
	logger.Info().Str("component", "views").Msg("flushed")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "flushed")
	assert.Contains(t, out, `"component":"views"`)
}

func TestStdWriter(t *testing.T) {
	var buf bytes.Buffer
	w := stdWriter{logger: New(&buf, zerolog.InfoLevel)}

	n, err := w.Write([]byte("legacy line\n"))
	require.NoError(t, err)
	require.Equal(t, len("legacy line\n"), n)
	assert.Contains(t, buf.String(), `"message":"legacy line"`)
}
