package yamux

import (
	"sync/atomic"
	"time"

	"github.com/hashicorp/yamux"
)

// Stream 在 yamux.Stream 上提供全关闭语义
//
// yamux 的 Close 只发送 FIN，本地阻塞的 Read 不会返回。这里的 Close
// 先把读截止时间设为现在，再发送 FIN，调用后本地读写立即结束，
// 对端读到 EOF。Read / Write / 截止时间方法直接来自 yamux.Stream。
type Stream struct {
	*yamux.Stream

	closed   atomic.Bool
	onClosed func(id uint32)
}

func newStream(s *yamux.Stream, onClosed func(id uint32)) *Stream {
	return &Stream{Stream: s, onClosed: onClosed}
}

// Close 关闭流的读写两端，幂等
func (s *Stream) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	_ = s.Stream.SetReadDeadline(time.Now())
	err := s.Stream.Close()
	if s.onClosed != nil {
		s.onClosed(s.ID())
	}
	return err
}

// CloseWrite 只发送 FIN，仍可继续读取
func (s *Stream) CloseWrite() error {
	return s.Stream.Close()
}

// ID 返回流 ID
func (s *Stream) ID() uint32 {
	return s.StreamID()
}

// IsClosed 报告 Close 是否已被调用
func (s *Stream) IsClosed() bool {
	return s.closed.Load()
}
