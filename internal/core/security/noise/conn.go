package noise

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/flynn/noise"
	pool "github.com/libp2p/go-buffer-pool"

	"github.com/dep2p/go-circuit/pkg/types"
)

const (
	// maxFrameSize 单帧密文上限（2 字节长度）
	maxFrameSize = 65535
	// maxPlaintext 单帧明文上限，扣除 Poly1305 标签
	maxPlaintext = maxFrameSize - 16
)

// ============================================================================
// Secure Connection 实现
// ============================================================================

// secureConn Noise 安全连接
type secureConn struct {
	net.Conn

	sendCS *noise.CipherState
	recvCS *noise.CipherState

	localPeer  types.PeerID
	remotePeer types.PeerID

	readMu  sync.Mutex
	writeMu sync.Mutex

	// 上一帧未读完的明文
	readBuf []byte
}

// Read 读取并解密
func (c *secureConn) Read(p []byte) (int, error) {
	c.readMu.Lock()
	defer c.readMu.Unlock()

	if len(c.readBuf) > 0 {
		n := copy(p, c.readBuf)
		c.readBuf = c.readBuf[n:]
		return n, nil
	}

	var lenBuf [2]byte
	if _, err := io.ReadFull(c.Conn, lenBuf[:]); err != nil {
		return 0, err
	}
	msgLen := binary.BigEndian.Uint16(lenBuf[:])
	if msgLen == 0 {
		return 0, io.EOF
	}

	encMsg := make([]byte, msgLen)
	if _, err := io.ReadFull(c.Conn, encMsg); err != nil {
		return 0, err
	}

	plaintext, err := c.recvCS.Decrypt(encMsg[:0], nil, encMsg)
	if err != nil {
		return 0, fmt.Errorf("decrypt: %w", err)
	}

	n := copy(p, plaintext)
	if n < len(plaintext) {
		c.readBuf = plaintext[n:]
	}
	return n, nil
}

// Write 加密并写出，超过单帧上限时分帧
func (c *secureConn) Write(p []byte) (int, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	written := 0
	for written < len(p) {
		end := written + maxPlaintext
		if end > len(p) {
			end = len(p)
		}

		buf := pool.Get(2 + end - written + 16)
		frame, err := c.sendCS.Encrypt(buf[:2], nil, p[written:end])
		if err != nil {
			pool.Put(buf)
			return written, fmt.Errorf("encrypt: %w", err)
		}
		binary.BigEndian.PutUint16(frame, uint16(len(frame)-2))

		_, err = c.Conn.Write(frame)
		pool.Put(buf)
		if err != nil {
			return written, err
		}
		written = end
	}
	return written, nil
}

// LocalPeer 返回本地节点 ID
func (c *secureConn) LocalPeer() types.PeerID {
	return c.localPeer
}

// RemotePeer 返回经过验证的远端节点 ID
func (c *secureConn) RemotePeer() types.PeerID {
	return c.remotePeer
}
