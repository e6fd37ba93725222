package catalog

import (
	"errors"
	"fmt"
)

// ByteOrder 信号字节序
type ByteOrder string

const (
	// ByteOrderLittle Intel 格式：start_bit 为最低有效位位置
	ByteOrderLittle ByteOrder = "little"
	// ByteOrderBig Motorola 格式：start_bit 为最高有效位位置
	ByteOrderBig ByteOrder = "big"
)

// Signal 帧内一个位域信号的物理编码描述
type Signal struct {
	Name       string
	FrameID    uint32
	StartBit   int
	BitLength  int
	ByteOrder  ByteOrder
	Signed     bool
	Scale      float64
	Offset     float64
	DefaultRaw int64
}

// RawRange 返回该位域可表示的原始值区间 [min, max]
func (s *Signal) RawRange() (int64, int64) {
	if s.Signed {
		return -(int64(1) << (s.BitLength - 1)), (int64(1) << (s.BitLength - 1)) - 1
	}
	if s.BitLength >= 64 {
		// uint64 上界放不进 int64，返回 int64 上界即可：
		// 量化值本身以 int64 承载，不会超过它
		return 0, 1<<63 - 1
	}
	return 0, (int64(1) << s.BitLength) - 1
}

// Frame 一条总线帧：固定字节长度与其包含的全部信号
type Frame struct {
	ID      uint32
	Name    string
	Length  int
	Signals []*Signal

	byName         map[string]*Signal
	defaultPayload []byte
}

// Signal 按名称查找帧内信号
func (f *Frame) Signal(name string) (*Signal, bool) {
	s, ok := f.byName[name]
	return s, ok
}

// DefaultPayload 返回默认载荷的副本（所有信号按 default_raw_value 预打包）
func (f *Frame) DefaultPayload() []byte {
	out := make([]byte, len(f.defaultPayload))
	copy(out, f.defaultPayload)
	return out
}

// Catalog 协议信号目录：加载后只读，可被所有组件安全共享
type Catalog struct {
	frames      map[uint32]*Frame
	signalOwner map[string]*Frame
}

// ErrUnknownFrame 目录中不存在该帧
var ErrUnknownFrame = errors.New("catalog: unknown frame")

// Frame 按帧 ID 查找
func (c *Catalog) Frame(id uint32) (*Frame, bool) {
	f, ok := c.frames[id]
	return f, ok
}

// SignalByName 按信号名全局查找，返回信号及其所属帧
func (c *Catalog) SignalByName(name string) (*Signal, *Frame, bool) {
	f, ok := c.signalOwner[name]
	if !ok {
		return nil, nil, false
	}
	return f.byName[name], f, true
}

// Frames 返回全部帧（遍历用，调用方不得修改）
func (c *Catalog) Frames() []*Frame {
	out := make([]*Frame, 0, len(c.frames))
	for _, f := range c.frames {
		out = append(out, f)
	}
	return out
}

// FrameCount 帧数量
func (c *Catalog) FrameCount() int { return len(c.frames) }

// SignalCount 信号总数
func (c *Catalog) SignalCount() int { return len(c.signalOwner) }

func (c *Catalog) String() string {
	return fmt.Sprintf("catalog(%d frames, %d signals)", len(c.frames), len(c.signalOwner))
}
