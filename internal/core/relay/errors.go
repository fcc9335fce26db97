package relay

import (
	"errors"
	"fmt"

	pb "github.com/dep2p/go-circuit/pkg/lib/proto/circuit"
)

// Sentinel errors
var (
	// 发起方错误
	ErrHopRequestFailed = errors.New("relay: hop request failed")

	// 通道错误
	ErrMessageTooLarge  = errors.New("relay: message too large")
	ErrMalformedMessage = errors.New("relay: malformed message")
	ErrChannelDetached  = errors.New("relay: channel detached")
	ErrChannelClosed    = errors.New("relay: channel closed")

	// 服务错误
	ErrServiceClosed  = errors.New("relay: service closed")
	ErrListenerClosed = errors.New("relay: listener closed")
	ErrInvalidConfig  = errors.New("relay: invalid config")
)

// HopError HOP 请求被中继拒绝
//
// errors.Is(err, ErrHopRequestFailed) 对 HopError 成立。
type HopError struct {
	Code pb.CircuitRelay_Status
}

// Error 实现 error
func (e *HopError) Error() string {
	return fmt.Sprintf("relay: hop request failed with code %s", e.Code)
}

// Unwrap 返回 ErrHopRequestFailed
func (e *HopError) Unwrap() error {
	return ErrHopRequestFailed
}
