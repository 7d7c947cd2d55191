package logger

import (
	"context"
	"strings"
	"testing"

	"github.com/alecthomas/assert/v2"
)

// TestNewWithWriter verifies structured fields land in the JSON output.
func TestNewWithWriter(t *testing.T) {
	var buf strings.Builder
	log := NewWithWriter(&buf)

	log.Info().Str("table", "exceptions.csv").Msg("wrote output table")

	out := buf.String()
	assert.Contains(t, out, `"table":"exceptions.csv"`)
	assert.Contains(t, out, `"message":"wrote output table"`)
}

// TestContextRoundTrip verifies the context carries the attached logger
// back out.
func TestContextRoundTrip(t *testing.T) {
	var buf strings.Builder
	log := NewWithWriter(&buf)

	ctx := WithContext(context.Background(), log)
	attached := FromContext(ctx)
	attached.Info().Msg("attached")

	assert.Contains(t, buf.String(), "attached")
}
