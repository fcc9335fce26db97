package tcp

import (
	"sync"

	manet "github.com/multiformats/go-multiaddr/net"
)

// Listener TCP 监听器
type Listener struct {
	manet.Listener

	closeOnce sync.Once
	closeErr  error
	onClose   func(*Listener)
}

// Close 关闭监听器，幂等
func (l *Listener) Close() error {
	l.closeOnce.Do(func() {
		l.closeErr = l.Listener.Close()
		if l.onClose != nil {
			l.onClose(l)
		}
		log.Debug("TCP 监听已关闭", "addr", l.Multiaddr().String())
	})
	return l.closeErr
}
