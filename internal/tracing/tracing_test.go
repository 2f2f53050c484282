package tracing

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace/noop"
)

func TestSetup_Disabled(t *testing.T) {
	shutdown, err := Setup(false, nil)
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))

	_, span := Start(context.Background(), "noop")
	End(span, errors.New("ignored"))
}

func TestSetup_ExportsSpans(t *testing.T) {
	t.Cleanup(func() { otel.SetTracerProvider(noop.NewTracerProvider()) })

	var buf bytes.Buffer
	shutdown, err := Setup(true, &buf)
	require.NoError(t, err)

	ctx, span := Start(context.Background(), "work.resolve_parents", attribute.Int("frontier", 3))
	_, child := Start(ctx, "work.fetch_parent")
	End(child, errors.New("boom"))
	End(span, nil)

	require.NoError(t, shutdown(context.Background()))

	out := buf.String()
	assert.Contains(t, out, "work.resolve_parents")
	assert.Contains(t, out, "work.fetch_parent")
	assert.Contains(t, out, "boom")
}
