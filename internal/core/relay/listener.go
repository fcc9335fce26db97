package relay

import (
	"context"
	"sync"
)

// Listener 目标侧的入站电路队列
//
// STOP 协商成功后电路进入队列，由应用通过 Accept 取走。队列满时新电路
// 被直接关闭。
type Listener struct {
	ch chan *Conn

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

func newListener(backlog int) *Listener {
	if backlog <= 0 {
		backlog = DefaultAcceptBacklog
	}
	return &Listener{
		ch:   make(chan *Conn, backlog),
		done: make(chan struct{}),
	}
}

// deliver 尝试把电路放入队列，失败时返回 false，调用方负责关闭
func (l *Listener) deliver(c *Conn) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return false
	}
	select {
	case l.ch <- c:
		return true
	default:
		return false
	}
}

// Accept 等待下一条入站电路
func (l *Listener) Accept(ctx context.Context) (*Conn, error) {
	select {
	case c := <-l.ch:
		return c, nil
	default:
	}

	select {
	case c := <-l.ch:
		return c, nil
	case <-l.done:
		return nil, ErrListenerClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close 关闭队列，并关闭尚未被取走的电路
func (l *Listener) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	close(l.done)
	l.mu.Unlock()

	for {
		select {
		case c := <-l.ch:
			_ = c.Close()
		default:
			return nil
		}
	}
}
