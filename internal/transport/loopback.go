package transport

import (
	"sync"
	"time"
)

// SentFrame Loopback 记录的一次发送
type SentFrame struct {
	FrameID uint32
	Payload []byte
	SentAt  time.Time
}

// Loopback 内存传输：记录全部发送，供测试与无总线环境使用
type Loopback struct {
	mu     sync.Mutex
	closed bool
	sent   []SentFrame
}

// NewLoopback 创建内存传输
func NewLoopback() *Loopback {
	return &Loopback{}
}

// Send 记录一帧。载荷做防御性拷贝，调用方可复用缓冲。
func (l *Loopback) Send(frameID uint32, payload []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrClosed
	}
	p := make([]byte, len(payload))
	copy(p, payload)
	l.sent = append(l.sent, SentFrame{FrameID: frameID, Payload: p, SentAt: time.Now()})
	return nil
}

// Close 关闭后 Send 返回 ErrClosed
func (l *Loopback) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}

// Sent 返回已记录发送的副本
func (l *Loopback) Sent() []SentFrame {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]SentFrame, len(l.sent))
	copy(out, l.sent)
	return out
}

// Last 返回某帧 ID 最近一次发送
func (l *Loopback) Last(frameID uint32) (SentFrame, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := len(l.sent) - 1; i >= 0; i-- {
		if l.sent[i].FrameID == frameID {
			return l.sent[i], true
		}
	}
	return SentFrame{}, false
}
