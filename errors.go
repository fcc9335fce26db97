package circuit

import "errors"

// 公共错误定义
var (
	// ErrNodeClosed 节点已关闭
	ErrNodeClosed = errors.New("node closed")

	// ErrNotRelayAddr 地址不是中继电路地址
	ErrNotRelayAddr = errors.New("not a relay circuit address")
)
