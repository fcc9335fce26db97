package relay

import (
	"bytes"
	"io"
	"net"
	"testing"

	"github.com/multiformats/go-varint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pb "github.com/dep2p/go-circuit/pkg/lib/proto/circuit"
)

// frame 构造一帧 varint 长度前缀的消息
func frame(t *testing.T, msg *pb.CircuitRelay) []byte {
	t.Helper()
	data, err := msg.Marshal()
	require.NoError(t, err)
	return append(varint.ToUvarint(uint64(len(data))), data...)
}

func TestStreamHandler_RoundTrip(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	w := NewStreamHandler(a, 0)
	r := NewStreamHandler(b, 0)

	want := NewHopRequest(testAddrInfo(1), testAddrInfo(2))
	errCh := make(chan error, 1)
	go func() { errCh <- w.WriteMsg(want) }()

	got, err := r.ReadMsg()
	require.NoError(t, err)
	require.NoError(t, <-errCh)

	assert.Equal(t, pb.CircuitRelay_HOP, got.GetType())
	assert.Equal(t, want.GetSrcPeer().GetId(), got.GetSrcPeer().GetId())
	assert.Equal(t, want.GetDstPeer().GetId(), got.GetDstPeer().GetId())
	assert.Equal(t, want.GetDstPeer().GetAddrs(), got.GetDstPeer().GetAddrs())
}

func TestStreamHandler_EOF(t *testing.T) {
	a, b := net.Pipe()
	r := NewStreamHandler(b, 0)

	require.NoError(t, a.Close())

	_, err := r.ReadMsg()
	assert.ErrorIs(t, err, io.EOF)

	// 通道已自行关闭
	_, err = r.ReadMsg()
	assert.ErrorIs(t, err, io.EOF)
	assert.ErrorIs(t, r.WriteMsg(statusMsg(pb.CircuitRelay_SUCCESS)), ErrChannelClosed)
}

func TestStreamHandler_TruncatedFrame(t *testing.T) {
	a, b := net.Pipe()
	r := NewStreamHandler(b, 0)

	go func() {
		// 声明 10 字节，只发 3 字节
		_, _ = a.Write([]byte{10, 0x08, 0x01, 0x12})
		_ = a.Close()
	}()

	_, err := r.ReadMsg()
	assert.ErrorIs(t, err, io.EOF)
}

func TestStreamHandler_MessageTooLarge(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	r := NewStreamHandler(b, 0)

	go func() { _, _ = a.Write(varint.ToUvarint(DefaultMaxMessageSize + 1)) }()

	_, err := r.ReadMsg()
	assert.ErrorIs(t, err, ErrMessageTooLarge)

	// 超限后通道关闭
	assert.ErrorIs(t, r.WriteMsg(statusMsg(pb.CircuitRelay_SUCCESS)), ErrChannelClosed)
}

func TestStreamHandler_WriteTooLarge(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	w := NewStreamHandler(a, 8)
	err := w.WriteMsg(NewHopRequest(testAddrInfo(1), testAddrInfo(2)))
	assert.ErrorIs(t, err, ErrMessageTooLarge)
}

func TestStreamHandler_MalformedKeepsChannelOpen(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	r := NewStreamHandler(b, 0)

	go func() {
		_, _ = a.Write([]byte{2, 0xff, 0xff})
		_, _ = a.Write(frame(t, statusMsg(pb.CircuitRelay_SUCCESS)))
	}()

	_, err := r.ReadMsg()
	require.ErrorIs(t, err, ErrMalformedMessage)

	msg, err := r.ReadMsg()
	require.NoError(t, err)
	assert.Equal(t, pb.CircuitRelay_SUCCESS, msg.GetCode())
}

func TestStreamHandler_RestNoReadAhead(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	r := NewStreamHandler(b, 0)

	payload := []byte("hello")
	go func() {
		_, _ = a.Write(append(frame(t, statusMsg(pb.CircuitRelay_SUCCESS)), payload...))
	}()

	msg, err := r.ReadMsg()
	require.NoError(t, err)
	assert.Equal(t, pb.CircuitRelay_SUCCESS, msg.GetCode())

	raw := r.Rest()
	got := make([]byte, len(payload))
	_, err = io.ReadFull(raw, got)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(payload, got))

	// 分离后通道不可用，Close 不影响原始流
	_, err = r.ReadMsg()
	assert.ErrorIs(t, err, ErrChannelDetached)
	assert.ErrorIs(t, r.WriteMsg(statusMsg(pb.CircuitRelay_SUCCESS)), ErrChannelDetached)
	assert.NoError(t, r.Close())
	assert.Same(t, raw, r.Rest())

	go func() { _, _ = a.Write([]byte("x")) }()
	one := make([]byte, 1)
	_, err = io.ReadFull(raw, one)
	require.NoError(t, err)
	assert.Equal(t, byte('x'), one[0])
}

func TestStreamHandler_CloseIdempotent(t *testing.T) {
	a, b := net.Pipe()
	r := NewStreamHandler(b, 0)

	assert.NoError(t, r.Close())
	assert.NoError(t, r.Close())

	// 对端看到 EOF
	_, err := a.Read(make([]byte, 1))
	assert.ErrorIs(t, err, io.EOF)
}

func TestStreamHandler_End(t *testing.T) {
	a, b := net.Pipe()
	w := NewStreamHandler(a, 0)
	r := NewStreamHandler(b, 0)

	errCh := make(chan error, 1)
	go func() { errCh <- w.End(statusMsg(pb.CircuitRelay_HOP_NO_CONN_TO_DST)) }()

	msg, err := r.ReadMsg()
	require.NoError(t, err)
	assert.Equal(t, pb.CircuitRelay_HOP_NO_CONN_TO_DST, msg.GetCode())
	require.NoError(t, <-errCh)

	_, err = r.ReadMsg()
	assert.ErrorIs(t, err, io.EOF)
}

func TestStreamHandler_RestAfterClose(t *testing.T) {
	_, b := net.Pipe()
	r := NewStreamHandler(b, 0)

	require.NoError(t, r.Close())
	assert.Nil(t, r.Rest())
}

func TestStreamHandler_CloseRestExclusive(t *testing.T) {
	for i := 0; i < 100; i++ {
		a, b := net.Pipe()
		r := NewStreamHandler(b, 0)

		done := make(chan struct{})
		go func() {
			_ = r.Close()
			close(done)
		}()
		raw := r.Rest()
		<-done

		if raw == nil {
			// Close 先完成：流已关闭
			_, err := a.Read(make([]byte, 1))
			assert.ErrorIs(t, err, io.EOF)
		} else {
			// Rest 先完成：Close 不影响已取走的流
			go func() { _, _ = a.Write([]byte("x")) }()
			_, err := io.ReadFull(raw, make([]byte, 1))
			assert.NoError(t, err)
			_ = raw.Close()
		}
		_ = a.Close()
	}
}
