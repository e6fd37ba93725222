//go:build !linux

package transport

import "errors"

// SocketCAN 占位类型：SocketCAN 仅在 linux 上可用
type SocketCAN struct{}

// DialSocketCAN 非 linux 平台不支持 SocketCAN
func DialSocketCAN(device string) (*SocketCAN, error) {
	return nil, errors.New("socketcan: only supported on linux")
}

func (s *SocketCAN) Send(frameID uint32, payload []byte) error {
	return errors.New("socketcan: only supported on linux")
}

func (s *SocketCAN) Close() error { return nil }
