// Package proto 定义网络协议消息（wire format）
//
// # 子包
//
//   - circuit: circuit relay v1 协商消息（CircuitRelay / Peer）
//   - noise: Noise 握手载荷（身份公钥与签名）
//
// 每个子包附带 .proto 文件描述字段编号。编解码基于
// google.golang.org/protobuf/encoding/protowire 手写，
// 与其他实现生成的代码在字节上兼容。
//
// # 与 pkg/types 的区别
//
// pkg/lib/proto 定义网络协议消息，pkg/types 定义 Go 内部数据结构。
//
// # 使用示例
//
//	import pb "github.com/dep2p/go-circuit/pkg/lib/proto/circuit"
package proto
