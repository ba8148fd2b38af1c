package ctxlog

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestWithLogger_FromContext_Roundtrip(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	ctx := WithLogger(context.Background(), logger)

	got := FromContext(ctx)
	got.Info().Msg("hello")
	assert.Contains(t, buf.String(), "hello")
}

func TestFromContext_NoLoggerReturnsNop(t *testing.T) {
	got := FromContext(context.Background())
	// Nop logger must not panic and must produce no output.
	got.Info().Msg("should not appear")
}
