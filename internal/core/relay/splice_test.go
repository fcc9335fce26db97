package relay

import (
	"bytes"
	"context"
	"io"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// splicePair 两条内存管道，返回两端的外侧与 Splice 结果
func splicePair(t *testing.T, ctx context.Context, opts ...SpliceOption) (net.Conn, net.Conn, <-chan error) {
	t.Helper()
	aOuter, aInner := net.Pipe()
	bOuter, bInner := net.Pipe()
	t.Cleanup(func() {
		_ = aOuter.Close()
		_ = bOuter.Close()
	})

	errCh := make(chan error, 1)
	go func() { errCh <- Splice(ctx, aInner, bInner, opts...) }()
	return aOuter, bOuter, errCh
}

func waitSplice(t *testing.T, errCh <-chan error) error {
	t.Helper()
	select {
	case err := <-errCh:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("splice did not return")
		return nil
	}
}

func TestSplice_Bidirectional(t *testing.T) {
	var forward, backward atomic.Int64
	a, b, errCh := splicePair(t, context.Background(), WithByteCounter(func(dir Direction, n int) {
		if dir == Forward {
			forward.Add(int64(n))
		} else {
			backward.Add(int64(n))
		}
	}))

	go func() { _, _ = a.Write([]byte("hello")) }()
	buf := make([]byte, 5)
	_, err := io.ReadFull(b, buf)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf))

	go func() { _, _ = b.Write([]byte("world!")) }()
	buf = make([]byte, 6)
	_, err = io.ReadFull(a, buf)
	require.NoError(t, err)
	assert.Equal(t, "world!", string(buf))

	require.NoError(t, a.Close())
	assert.NoError(t, waitSplice(t, errCh))

	// 一侧结束后另一侧也被关闭
	_, err = b.Read(make([]byte, 1))
	assert.ErrorIs(t, err, io.EOF)

	assert.EqualValues(t, 5, forward.Load())
	assert.EqualValues(t, 6, backward.Load())
}

func TestSplice_LargePayload(t *testing.T) {
	a, b, errCh := splicePair(t, context.Background(), WithBufferSize(1024))

	payload := bytes.Repeat([]byte("0123456789abcdef"), 4096)
	go func() {
		_, _ = a.Write(payload)
		_ = a.Close()
	}()

	got, err := io.ReadAll(b)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
	assert.NoError(t, waitSplice(t, errCh))
}

func TestSplice_ContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	a, b, errCh := splicePair(t, ctx)

	cancel()
	assert.ErrorIs(t, waitSplice(t, errCh), context.Canceled)

	_, err := a.Read(make([]byte, 1))
	assert.ErrorIs(t, err, io.EOF)
	_, err = b.Read(make([]byte, 1))
	assert.ErrorIs(t, err, io.EOF)
}

func TestSplice_BandwidthLimit(t *testing.T) {
	a, b, errCh := splicePair(t, context.Background(),
		WithBufferSize(1024),
		WithBandwidthLimit(10*1024),
	)

	// 首个 1KiB 走突发额度，其余 3KiB 至少需要约 300ms
	payload := bytes.Repeat([]byte{0x42}, 4*1024)
	start := time.Now()
	go func() {
		_, _ = a.Write(payload)
		_ = a.Close()
	}()

	got, err := io.ReadAll(b)
	require.NoError(t, err)
	assert.Len(t, got, len(payload))
	assert.GreaterOrEqual(t, time.Since(start), 200*time.Millisecond)
	assert.NoError(t, waitSplice(t, errCh))
}

func TestDirection_String(t *testing.T) {
	assert.Equal(t, "forward", Forward.String())
	assert.Equal(t, "backward", Backward.String())
}
