package yamux

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/yamux"
	"go.uber.org/multierr"
)

// ErrMuxerClosed 多路复用器已关闭
var ErrMuxerClosed = errors.New("yamux: muxer closed")

// Muxer 封装 yamux.Session
type Muxer struct {
	session  *yamux.Session
	isServer bool
	closed   atomic.Bool

	streamsMu sync.RWMutex
	streams   map[uint32]*Stream
}

// NewMuxer 在连接上创建多路复用器
func NewMuxer(conn io.ReadWriteCloser, isServer bool, cfg *yamux.Config) (*Muxer, error) {
	if conn == nil {
		return nil, errors.New("yamux: conn is nil")
	}
	if cfg == nil {
		cfg = defaultConfig()
	}

	var session *yamux.Session
	var err error
	if isServer {
		session, err = yamux.Server(conn, cfg)
	} else {
		session, err = yamux.Client(conn, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("创建 yamux session 失败: %w", err)
	}

	return &Muxer{
		session:  session,
		isServer: isServer,
		streams:  make(map[uint32]*Stream),
	}, nil
}

// NewStream 打开新流
//
// yamux 的 OpenStream 不支持 context，在单独的 goroutine 中打开，
// ctx 先结束时关闭随后打开的孤立流。
func (m *Muxer) NewStream(ctx context.Context) (*Stream, error) {
	if m.IsClosed() {
		return nil, ErrMuxerClosed
	}

	type result struct {
		stream *yamux.Stream
		err    error
	}
	resultCh := make(chan result, 1)
	abandoned := make(chan struct{})

	go func() {
		s, err := m.session.OpenStream()
		select {
		case resultCh <- result{stream: s, err: err}:
		case <-abandoned:
			if s != nil {
				_ = s.Close()
			}
		}
	}()

	select {
	case <-ctx.Done():
		close(abandoned)
		// 结果可能已写入通道
		select {
		case r := <-resultCh:
			if r.stream != nil {
				_ = r.stream.Close()
			}
		default:
		}
		return nil, ctx.Err()
	case r := <-resultCh:
		if r.err != nil {
			return nil, fmt.Errorf("创建流失败: %w", r.err)
		}
		return m.track(r.stream), nil
	}
}

// AcceptStream 接受新流
func (m *Muxer) AcceptStream() (*Stream, error) {
	if m.IsClosed() {
		return nil, ErrMuxerClosed
	}

	s, err := m.session.AcceptStream()
	if err != nil {
		return nil, fmt.Errorf("接受流失败: %w", err)
	}
	return m.track(s), nil
}

// Close 关闭多路复用器及全部流
func (m *Muxer) Close() error {
	if !m.closed.CompareAndSwap(false, true) {
		return nil
	}

	m.streamsMu.Lock()
	streams := m.streams
	m.streams = make(map[uint32]*Stream)
	m.streamsMu.Unlock()

	var err error
	for _, s := range streams {
		err = multierr.Append(err, s.Close())
	}
	return multierr.Append(err, m.session.Close())
}

// IsClosed 检查是否已关闭
func (m *Muxer) IsClosed() bool {
	return m.closed.Load() || m.session.IsClosed()
}

// CloseChan 会话结束时关闭
func (m *Muxer) CloseChan() <-chan struct{} {
	return m.session.CloseChan()
}

// NumStreams 返回当前流数量
func (m *Muxer) NumStreams() int {
	m.streamsMu.RLock()
	defer m.streamsMu.RUnlock()
	return len(m.streams)
}

// IsServer 返回是否是服务端
func (m *Muxer) IsServer() bool {
	return m.isServer
}

// Ping 发送 ping
func (m *Muxer) Ping() (time.Duration, error) {
	if m.IsClosed() {
		return 0, ErrMuxerClosed
	}
	return m.session.Ping()
}

func (m *Muxer) track(s *yamux.Stream) *Stream {
	stream := newStream(s, m.removeStream)
	m.streamsMu.Lock()
	m.streams[stream.ID()] = stream
	m.streamsMu.Unlock()
	return stream
}

func (m *Muxer) removeStream(id uint32) {
	m.streamsMu.Lock()
	delete(m.streams, id)
	m.streamsMu.Unlock()
}
