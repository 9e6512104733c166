package pool

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestByteBufferPool_ResetsOnPut(t *testing.T) {
	buf := ByteBufferPool.Get()
	buf.WriteString("{\"__children\":[]}")
	ByteBufferPool.Put(buf)

	again := ByteBufferPool.Get()
	defer ByteBufferPool.Put(again)
	assert.Zero(t, again.Len())
}

func TestByteBufferPool_DropsOversizedBuffers(t *testing.T) {
	p := NewPool(
		func() *bytes.Buffer { return new(bytes.Buffer) },
		func(b **bytes.Buffer) {
			if (*b).Cap() > maxPooledBuffer {
				*b = new(bytes.Buffer)
				return
			}
			(*b).Reset()
		},
	)
	big := bytes.NewBuffer(make([]byte, 0, 2*maxPooledBuffer))
	p.Put(big)

	stats := p.Stats()
	assert.EqualValues(t, 1, stats.Puts)
	assert.EqualValues(t, 1, stats.Resets)
}

func TestPoolStats_HitRate(t *testing.T) {
	assert.Zero(t, PoolStats{}.HitRate())
	assert.InDelta(t, 0.75, PoolStats{Gets: 4, News: 1}.HitRate(), 1e-9)
}
