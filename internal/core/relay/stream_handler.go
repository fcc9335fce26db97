package relay

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	pool "github.com/libp2p/go-buffer-pool"
	"github.com/multiformats/go-varint"
	"go.uber.org/multierr"

	"github.com/dep2p/go-circuit/pkg/interfaces"
	pb "github.com/dep2p/go-circuit/pkg/lib/proto/circuit"
)

// ============================================================================
//                              StreamHandler
// ============================================================================

// StreamHandler 分帧消息通道
//
// 把一条原始双工流变成 varint 长度前缀的 CircuitRelay 消息序列。
// 协商结束后通过 Rest 取回原始流承载载荷，此后通道不再可用。
//
// 读取时只消费当前帧的字节，不做预读，Rest 返回的流从下一个字节开始。
// 通道由处理该会话的 goroutine 独占，不支持并发读写。
type StreamHandler struct {
	stream  interfaces.Stream
	maxSize int

	// state 在 open → detached 与 open → closed 之间只能迁移一次，
	// Rest 与 Close 因此互斥
	state     atomic.Int32
	closeOnce sync.Once
	closeErr  error
}

const (
	stateOpen int32 = iota
	stateDetached
	stateClosed
)

// NewStreamHandler 包装原始流
//
// maxSize <= 0 时使用 DefaultMaxMessageSize。
func NewStreamHandler(s interfaces.Stream, maxSize int) *StreamHandler {
	if maxSize <= 0 {
		maxSize = DefaultMaxMessageSize
	}
	return &StreamHandler{stream: s, maxSize: maxSize}
}

// ReadMsg 读取一条完整消息
//
// 流在一帧完整到达前结束时，通道自行关闭并返回 io.EOF（"没有消息"）。
// 帧长超过上限或传输出错时同样关闭通道；消息体无法解码时返回
// ErrMalformedMessage，通道保持打开以便回复状态码。
func (h *StreamHandler) ReadMsg() (*pb.CircuitRelay, error) {
	switch h.state.Load() {
	case stateDetached:
		return nil, ErrChannelDetached
	case stateClosed:
		return nil, io.EOF
	}

	size, err := varint.ReadUvarint(byteReader{h.stream})
	if err != nil {
		return nil, h.readFailed(err)
	}
	if size > uint64(h.maxSize) {
		_ = h.Close()
		return nil, fmt.Errorf("%w: %d > %d", ErrMessageTooLarge, size, h.maxSize)
	}

	buf := pool.Get(int(size))
	defer pool.Put(buf)
	if _, err := io.ReadFull(h.stream, buf); err != nil {
		return nil, h.readFailed(err)
	}

	msg := &pb.CircuitRelay{}
	if err := msg.Unmarshal(buf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	return msg, nil
}

func (h *StreamHandler) readFailed(err error) error {
	_ = h.Close()
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return io.EOF
	}
	return fmt.Errorf("relay: read message: %w", err)
}

// WriteMsg 序列化并写出一条消息
func (h *StreamHandler) WriteMsg(msg *pb.CircuitRelay) error {
	switch h.state.Load() {
	case stateDetached:
		return ErrChannelDetached
	case stateClosed:
		return ErrChannelClosed
	}

	data, err := msg.Marshal()
	if err != nil {
		return fmt.Errorf("relay: marshal message: %w", err)
	}
	if len(data) > h.maxSize {
		return fmt.Errorf("%w: %d > %d", ErrMessageTooLarge, len(data), h.maxSize)
	}

	// 长度前缀与消息体合并为一次写入
	buf := pool.Get(varint.UvarintSize(uint64(len(data))) + len(data))
	defer pool.Put(buf)
	n := varint.PutUvarint(buf, uint64(len(data)))
	copy(buf[n:], data)

	if _, err := h.stream.Write(buf); err != nil {
		return fmt.Errorf("relay: write message: %w", err)
	}
	return nil
}

// End 写出消息后关闭通道
func (h *StreamHandler) End(msg *pb.CircuitRelay) error {
	return multierr.Append(h.WriteMsg(msg), h.Close())
}

// Rest 取回剩余的原始流
//
// 不可逆：之后 ReadMsg / WriteMsg 返回 ErrChannelDetached，
// Close 不再影响返回的流。重复调用返回同一条流。
// 通道已先被 Close 时返回 nil。
func (h *StreamHandler) Rest() interfaces.Stream {
	if h.state.CompareAndSwap(stateOpen, stateDetached) || h.state.Load() == stateDetached {
		return h.stream
	}
	return nil
}

// Close 关闭通道及底层流，幂等
//
// Rest 之后流归调用方所有，Close 不做任何事。
func (h *StreamHandler) Close() error {
	if !h.state.CompareAndSwap(stateOpen, stateClosed) && h.state.Load() != stateClosed {
		return nil
	}
	h.closeOnce.Do(func() {
		h.closeErr = h.stream.Close()
	})
	return h.closeErr
}

// SetDeadline 为底层流设置读写截止时间，流不支持时忽略
func (h *StreamHandler) SetDeadline(t time.Time) {
	setDeadline(h.stream, t)
}

type deadliner interface {
	SetDeadline(t time.Time) error
}

func setDeadline(s interfaces.Stream, t time.Time) {
	if d, ok := s.(deadliner); ok {
		_ = d.SetDeadline(t)
	}
}

// byteReader 逐字节读取，保证不越过当前帧
type byteReader struct {
	r io.Reader
}

func (b byteReader) ReadByte() (byte, error) {
	var one [1]byte
	if _, err := io.ReadFull(b.r, one[:]); err != nil {
		return 0, err
	}
	return one[0], nil
}
