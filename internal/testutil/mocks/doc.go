// Package mocks 提供测试用的网络接口模拟实现
//
// 方法默认返回固定值，可通过 XxxFunc 字段覆盖；PipeConn 基于 net.Pipe
// 把出站流直接交给对端的处理器，用于在内存中串起源、中继、目标三方。
package mocks
