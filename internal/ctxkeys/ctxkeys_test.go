package ctxkeys

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithTask(t *testing.T) {
	ctx := WithTask(context.Background(), "a1", "banners.Banners")

	id, ok := ArtifactID(ctx)
	assert.True(t, ok)
	assert.Equal(t, "a1", id)

	p, ok := Plugin(ctx)
	assert.True(t, ok)
	assert.Equal(t, "banners.Banners", p)

	_, ok = TraceID(ctx)
	assert.False(t, ok)
}

func TestEmptyValuesAreUnset(t *testing.T) {
	ctx := WithTraceID(context.Background(), "")
	_, ok := TraceID(ctx)
	assert.False(t, ok)
}

func TestFields(t *testing.T) {
	assert.Empty(t, Fields(context.Background()))

	ctx := WithTraceID(WithTask(context.Background(), "a1", "p"), "t1")
	fields := Fields(ctx)
	assert.Len(t, fields, 3)
	assert.Equal(t, "trace_id", fields[0].Key)
	assert.Equal(t, "artifact_id", fields[1].Key)
	assert.Equal(t, "plugin", fields[2].Key)
}
