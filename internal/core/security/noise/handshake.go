// Package noise 实现 Noise XX 安全通道
//
// 握手流程：
//
//	-> e
//	<- e, ee, s, es, payload
//	-> s, se, payload
//
// payload 携带 Ed25519 身份公钥及其对 Curve25519 静态公钥的签名，
// 握手结束后双方都得到经过验证的对端 PeerID。
package noise

import (
	"crypto/ed25519"
	"crypto/sha512"
	"encoding/binary"
	"fmt"
	"io"
	"net"

	"filippo.io/edwards25519"
	"github.com/flynn/noise"

	"github.com/dep2p/go-circuit/internal/core/identity"
	noisepb "github.com/dep2p/go-circuit/pkg/lib/proto/noise"
	"github.com/dep2p/go-circuit/pkg/types"
)

// payloadSigPrefix 签名前缀，与 libp2p-noise 一致
const payloadSigPrefix = "noise-libp2p-static-key:"

// ============================================================================
// Noise XX 握手实现
// ============================================================================

// performHandshake 执行 Noise XX 握手
//
// remotePeer 非空时校验对端身份。
func performHandshake(conn net.Conn, id *identity.Identity, remotePeer types.PeerID, isInitiator bool) (*secureConn, error) {
	// Ed25519 -> Curve25519
	staticKeypair := noise.DHKey{
		Private: ed25519ToCurve25519Private(id.PrivateKey()),
		Public:  ed25519ToCurve25519Public(id.PublicKey()),
	}

	cs := noise.NewCipherSuite(noise.DH25519, noise.CipherChaChaPoly, noise.HashSHA256)
	hs, err := noise.NewHandshakeState(noise.Config{
		CipherSuite:   cs,
		Pattern:       noise.HandshakeXX,
		Initiator:     isInitiator,
		StaticKeypair: staticKeypair,
	})
	if err != nil {
		return nil, fmt.Errorf("create handshake state: %w", err)
	}

	localPayload, err := generateHandshakePayload(id, staticKeypair.Public)
	if err != nil {
		return nil, fmt.Errorf("generate handshake payload: %w", err)
	}

	sendCS, recvCS, remotePayload, err := exchangeMessages(conn, hs, isInitiator, localPayload)
	if err != nil {
		return nil, err
	}

	remoteStatic := hs.PeerStatic()
	if len(remoteStatic) != 32 {
		return nil, fmt.Errorf("%w: static key length %d", ErrInvalidPayload, len(remoteStatic))
	}

	actualRemote, err := handleRemotePayload(remotePayload, remoteStatic)
	if err != nil {
		return nil, err
	}
	if remotePeer != "" && actualRemote != remotePeer {
		return nil, fmt.Errorf("%w: expected %s, got %s", ErrPeerIDMismatch, remotePeer, actualRemote)
	}

	return &secureConn{
		Conn:       conn,
		sendCS:     sendCS,
		recvCS:     recvCS,
		localPeer:  id.ID(),
		remotePeer: actualRemote,
	}, nil
}

// generateHandshakePayload 生成握手 payload
func generateHandshakePayload(id *identity.Identity, curve25519Pub []byte) ([]byte, error) {
	toSign := append([]byte(payloadSigPrefix), curve25519Pub...)
	payload := &noisepb.NoiseHandshakePayload{
		IdentityKey: id.PublicKey(),
		IdentitySig: id.Sign(toSign),
	}
	return payload.Marshal()
}

// handleRemotePayload 验证签名并派生对端 PeerID
func handleRemotePayload(payloadBytes []byte, remoteStatic []byte) (types.PeerID, error) {
	payload := &noisepb.NoiseHandshakePayload{}
	if err := payload.Unmarshal(payloadBytes); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if len(payload.IdentityKey) != ed25519.PublicKeySize {
		return "", fmt.Errorf("%w: identity key length %d", ErrInvalidPayload, len(payload.IdentityKey))
	}

	toVerify := append([]byte(payloadSigPrefix), remoteStatic...)
	if !identity.Verify(payload.IdentityKey, toVerify, payload.IdentitySig) {
		return "", ErrInvalidSignature
	}

	return types.PeerIDFromPublicKey(payload.IdentityKey)
}

// ============================================================================
// 握手流程
// ============================================================================

// xxMessages XX 模式的消息数，发起者写第 0、2 条，响应者写第 1 条
const xxMessages = 3

// exchangeMessages 按 XX 顺序收发三条握手消息
//
// 第 0 条不带 payload，其余两条由各自的写方携带本地 payload。
// 返回的 send / recv 已按角色排好。
func exchangeMessages(rw io.ReadWriter, hs *noise.HandshakeState, initiator bool, localPayload []byte) (send, recv *noise.CipherState, remotePayload []byte, err error) {
	for i := 0; i < xxMessages; i++ {
		var cs1, cs2 *noise.CipherState

		if (i%2 == 0) == initiator {
			var payload []byte
			if i > 0 {
				payload = localPayload
			}
			var out []byte
			out, cs1, cs2, err = hs.WriteMessage(nil, payload)
			if err != nil {
				return nil, nil, nil, fmt.Errorf("write message %d: %w", i+1, err)
			}
			if err = writeFrame(rw, out); err != nil {
				return nil, nil, nil, fmt.Errorf("send message %d: %w", i+1, err)
			}
		} else {
			in, rerr := readFrame(rw)
			if rerr != nil {
				return nil, nil, nil, fmt.Errorf("receive message %d: %w", i+1, rerr)
			}
			var got []byte
			got, cs1, cs2, err = hs.ReadMessage(nil, in)
			if err != nil {
				return nil, nil, nil, fmt.Errorf("read message %d: %w", i+1, err)
			}
			if i > 0 {
				remotePayload = got
			}
		}

		// 最后一条消息处理完后得到两个方向的密钥，cs1 属于发起者发送方向
		if cs1 != nil && cs2 != nil {
			if initiator {
				return cs1, cs2, remotePayload, nil
			}
			return cs2, cs1, remotePayload, nil
		}
	}
	return nil, nil, nil, ErrHandshakeIncomplete
}

// ============================================================================
// 密钥转换
// ============================================================================

// ed25519ToCurve25519Private RFC 7748 / RFC 8032 私钥转换
func ed25519ToCurve25519Private(edPriv ed25519.PrivateKey) []byte {
	h := sha512.Sum512(edPriv.Seed())

	h[0] &= 248
	h[31] &= 127
	h[31] |= 64

	return h[:32]
}

// ed25519ToCurve25519Public Edwards -> Montgomery: u = (1 + y) / (1 - y)
func ed25519ToCurve25519Public(edPub ed25519.PublicKey) []byte {
	point, err := new(edwards25519.Point).SetBytes(edPub)
	if err != nil {
		return make([]byte, 32)
	}
	return point.BytesMontgomery()
}

// ============================================================================
// 帧
// ============================================================================

// writeFrame 2 字节大端长度 + 数据
func writeFrame(w io.Writer, data []byte) error {
	buf := make([]byte, 2+len(data))
	binary.BigEndian.PutUint16(buf, uint16(len(data)))
	copy(buf[2:], data)
	_, err := w.Write(buf)
	return err
}

// readFrame 读取一帧，长度为 0 时返回空消息
func readFrame(r io.Reader) ([]byte, error) {
	var hdr [2]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	data := make([]byte, binary.BigEndian.Uint16(hdr[:]))
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, err
	}
	return data, nil
}
