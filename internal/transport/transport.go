// Package transport 定义总线发送端契约及其适配器。
// 核心对发送是 fire-and-forget：投递保证、重连与仲裁都属于总线一侧。
package transport

import "errors"

// ErrClosed 传输已关闭
var ErrClosed = errors.New("transport: closed")

// Transport 总线发送契约。Send 不得长时间阻塞调用方；
// 需要缓冲或重试的实现应自行异步化。
type Transport interface {
	Send(frameID uint32, payload []byte) error
	Close() error
}
