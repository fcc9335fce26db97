package noise

import "errors"

var (
	// ErrInvalidPayload 握手 payload 无效
	ErrInvalidPayload = errors.New("noise: invalid handshake payload")
	// ErrInvalidSignature 身份签名校验失败
	ErrInvalidSignature = errors.New("noise: static key not bound to identity key")
	// ErrPeerIDMismatch 对端身份与期望不符
	ErrPeerIDMismatch = errors.New("noise: peer id mismatch")
	// ErrHandshakeIncomplete 消息收发完毕仍未得到会话密钥
	ErrHandshakeIncomplete = errors.New("noise: handshake incomplete")
)
