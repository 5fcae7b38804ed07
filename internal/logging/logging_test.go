package logging

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("debug"))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel("warn"))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("verbose"))
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	ctx := WithLogger(context.Background(), logger)
	got := FromContext(ctx)
	got.Info().Msg("hello")
	assert.Contains(t, buf.String(), "hello")

	// Missing logger falls back to a no-op logger.
	nop := FromContext(context.Background())
	nop.Info().Msg("dropped")
	assert.NotContains(t, buf.String(), "dropped")
}

func TestLogBarFetch(t *testing.T) {
	var buf bytes.Buffer
	logger := WithSymbol(zerolog.New(&buf), "INFY")
	now := time.Date(2024, 1, 2, 9, 15, 0, 0, time.UTC)

	LogBarFetch(logger, "INFY", now, now.Add(time.Hour), 0, time.Second, errors.New("boom"))
	out := buf.String()
	assert.Contains(t, out, `"level":"warn"`)
	assert.Contains(t, out, `"event":"bar_fetch"`)
	assert.Contains(t, out, "boom")
}

func TestRedact(t *testing.T) {
	assert.Equal(t, "", MaskCredential(""))
	assert.Equal(t, "****", MaskCredential("abcd"))
	assert.Equal(t, "ab****", MaskCredential("abcdef"))
	assert.Equal(t, "abcd****mnop", MaskCredential("abcdefghmnop"))

	msg := "Incorrect API key provided: sk-proj1234567890abcdefXYZ. api_key=kiteabcdef123456"
	out := Redact(msg)
	assert.NotContains(t, out, "sk-proj1234567890abcdefXYZ")
	assert.NotContains(t, out, "kiteabcdef123456")
	assert.Contains(t, out, "api_key=kite********3456")
	assert.Equal(t, "no secrets here", Redact("no secrets here"))
}
