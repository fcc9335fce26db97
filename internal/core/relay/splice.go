package relay

import (
	"context"
	"errors"
	"io"
	"sync"

	pool "github.com/libp2p/go-buffer-pool"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/dep2p/go-circuit/pkg/interfaces"
)

// Direction 拼接方向
type Direction int

const (
	// Forward a → b（电路中为源 → 目标）
	Forward Direction = iota
	// Backward b → a
	Backward
)

// String 返回方向名
func (d Direction) String() string {
	if d == Forward {
		return "forward"
	}
	return "backward"
}

// errInvalidWrite 写入返回了不可能的字节数
var errInvalidWrite = errors.New("relay: invalid write result")

type spliceOptions struct {
	bufferSize int
	bandwidth  int64
	onBytes    func(dir Direction, n int)
}

// SpliceOption 拼接选项
type SpliceOption func(*spliceOptions)

// WithBufferSize 每个方向的拷贝缓冲区大小
func WithBufferSize(n int) SpliceOption {
	return func(o *spliceOptions) {
		if n > 0 {
			o.bufferSize = n
		}
	}
}

// WithBandwidthLimit 每个方向的字节/秒上限，<= 0 表示不限制
func WithBandwidthLimit(bytesPerSecond int64) SpliceOption {
	return func(o *spliceOptions) {
		o.bandwidth = bytesPerSecond
	}
}

// WithByteCounter 每次成功写入后回调
func WithByteCounter(fn func(dir Direction, n int)) SpliceOption {
	return func(o *spliceOptions) {
		o.onBytes = fn
	}
}

// ============================================================================
//                              Splice
// ============================================================================

// Splice 双向拼接 a 与 b，阻塞直到电路结束
//
// 两个方向各用一块固定大小的缓冲区，写入阻塞时不再读取，背压直接
// 传递到上游。任意方向结束（EOF 或错误）或 ctx 取消时关闭两条流。
// 返回最先结束方向的错误（EOF 视为 nil）与关闭错误的合并。
func Splice(ctx context.Context, a, b interfaces.Stream, opts ...SpliceOption) error {
	o := spliceOptions{bufferSize: DefaultBufferSize}
	for _, opt := range opts {
		opt(&o)
	}

	var (
		closeOnce sync.Once
		closeErr  error
		firstOnce sync.Once
		firstErr  error
	)
	closeBoth := func() {
		closeOnce.Do(func() {
			closeErr = multierr.Combine(a.Close(), b.Close())
		})
	}
	finish := func(err error) {
		firstOnce.Do(func() { firstErr = err })
		closeBoth()
	}

	stopWatch := context.AfterFunc(ctx, closeBoth)
	defer stopWatch()

	var g errgroup.Group
	g.Go(func() error {
		err := o.copy(ctx, b, a, Forward)
		finish(err)
		return err
	})
	g.Go(func() error {
		err := o.copy(ctx, a, b, Backward)
		finish(err)
		return err
	})
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}
	return multierr.Append(firstErr, closeErr)
}

// copy 从 src 拷贝到 dst 直到 EOF 或出错
func (o *spliceOptions) copy(ctx context.Context, dst io.Writer, src io.Reader, dir Direction) error {
	buf := pool.Get(o.bufferSize)
	defer pool.Put(buf)

	var limiter *rate.Limiter
	if o.bandwidth > 0 {
		// 突发不超过一块缓冲区，WaitN 的 n 永远不会超过 burst
		limiter = rate.NewLimiter(rate.Limit(o.bandwidth), o.bufferSize)
	}

	for {
		nr, er := src.Read(buf)
		if nr > 0 {
			if limiter != nil {
				if err := limiter.WaitN(ctx, nr); err != nil {
					return err
				}
			}

			nw, ew := dst.Write(buf[:nr])
			if nw < 0 || nr < nw {
				nw = 0
				if ew == nil {
					ew = errInvalidWrite
				}
			}
			if nw > 0 && o.onBytes != nil {
				o.onBytes(dir, nw)
			}
			if ew != nil {
				return ew
			}
			if nr != nw {
				return io.ErrShortWrite
			}
		}
		if er != nil {
			if errors.Is(er, io.EOF) {
				return nil
			}
			return er
		}
	}
}
