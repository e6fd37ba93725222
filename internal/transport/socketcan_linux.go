//go:build linux

package transport

import (
	"encoding/binary"
	"fmt"
	"net"
	"sync"

	"golang.org/x/sys/unix"
)

// 经典 CAN 的 can_frame 内核布局（include/uapi/linux/can.h）：
//   0..3  can_id（小端，含 EFF/RTR/ERR 标志位）
//   4     can_dlc
//   5..7  填充
//   8..15 数据
const canFrameSize = 16

// SocketCAN 绑定到一个 CAN 网络接口的原始套接字传输
type SocketCAN struct {
	mu     sync.Mutex
	fd     int
	device string
	closed bool
}

// DialSocketCAN 打开并绑定 SocketCAN 原始套接字（如 "can0"、"vcan0"）
func DialSocketCAN(device string) (*SocketCAN, error) {
	fd, err := unix.Socket(unix.AF_CAN, unix.SOCK_RAW, unix.CAN_RAW)
	if err != nil {
		return nil, fmt.Errorf("socketcan: socket: %w", err)
	}

	iface, err := net.InterfaceByName(device)
	if err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("socketcan: interface %s: %w", device, err)
	}

	if err := unix.Bind(fd, &unix.SockaddrCAN{Ifindex: iface.Index}); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("socketcan: bind %s: %w", device, err)
	}
	return &SocketCAN{fd: fd, device: device}, nil
}

// Send 发送一帧经典 CAN 数据帧。载荷超过 8 字节直接报错，
// 超过 11 位的帧 ID 自动按扩展帧（EFF）发送。
func (s *SocketCAN) Send(frameID uint32, payload []byte) error {
	if len(payload) > 8 {
		return fmt.Errorf("socketcan: payload %d bytes exceeds classical CAN limit", len(payload))
	}

	canID := frameID
	if frameID > 0x7FF {
		canID |= unix.CAN_EFF_FLAG
	}

	var buf [canFrameSize]byte
	binary.LittleEndian.PutUint32(buf[0:4], canID)
	buf[4] = byte(len(payload))
	copy(buf[8:], payload)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	n, err := unix.Write(s.fd, buf[:])
	if err != nil {
		return fmt.Errorf("socketcan: write %s: %w", s.device, err)
	}
	if n != canFrameSize {
		return fmt.Errorf("socketcan: short write on %s (%d of %d bytes)", s.device, n, canFrameSize)
	}
	return nil
}

// Close 关闭套接字
func (s *SocketCAN) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return unix.Close(s.fd)
}
