package catalog

import (
	"errors"
	"fmt"
)

// ErrCorrupt 信号布局越界等本应在加载期拦截的目录缺陷。
// 运行期出现即说明校验有漏洞，属致命错误类别。
var ErrCorrupt = errors.New("catalog: corrupt signal layout")

// bitPositions 返回位域占用的绝对位编号（byte*8+bit，bit0 为字节最低位），
// 顺序从位域的最高有效位到最低有效位。
//
// little（Intel）：start_bit 指向最低有效位，位编号向高位连续递增。
// big（Motorola）：start_bit 指向最高有效位，同字节内向低位走，
// 走到 bit0 后跳到下一个字节的 bit7（DBC 的锯齿编号）。
func (s *Signal) bitPositions() []int {
	out := make([]int, 0, s.BitLength)
	if s.ByteOrder == ByteOrderLittle {
		for i := s.BitLength - 1; i >= 0; i-- {
			out = append(out, s.StartBit+i)
		}
		return out
	}
	p := s.StartBit
	for i := 0; i < s.BitLength; i++ {
		out = append(out, p)
		if p%8 == 0 {
			p += 15
		} else {
			p--
		}
	}
	return out
}

// Pack 将 raw 的低 BitLength 位写入 payload 中该信号的位域，
// 其余位保持原样。raw 为二进制补码截断后的原始位型值。
func (s *Signal) Pack(payload []byte, raw uint64) error {
	positions := s.bitPositions()
	for i, p := range positions {
		byteIdx, bitIdx := p/8, p%8
		if byteIdx < 0 || byteIdx >= len(payload) {
			return fmt.Errorf("%w: signal %s bit %d outside %d-byte payload", ErrCorrupt, s.Name, p, len(payload))
		}
		if (raw>>(s.BitLength-1-i))&1 == 1 {
			payload[byteIdx] |= 1 << bitIdx
		} else {
			payload[byteIdx] &^= 1 << bitIdx
		}
	}
	return nil
}

// Unpack 从 payload 中读取该信号的原始值，带符号信号做补码符号扩展
func (s *Signal) Unpack(payload []byte) (int64, error) {
	var raw uint64
	for _, p := range s.bitPositions() {
		byteIdx, bitIdx := p/8, p%8
		if byteIdx < 0 || byteIdx >= len(payload) {
			return 0, fmt.Errorf("%w: signal %s bit %d outside %d-byte payload", ErrCorrupt, s.Name, p, len(payload))
		}
		raw = raw<<1 | uint64((payload[byteIdx]>>bitIdx)&1)
	}
	if s.Signed && s.BitLength < 64 && raw&(1<<(s.BitLength-1)) != 0 {
		raw |= ^uint64(0) << s.BitLength
	}
	return int64(raw), nil
}

// RawMask 位域宽度对应的掩码
func (s *Signal) RawMask() uint64 {
	if s.BitLength >= 64 {
		return ^uint64(0)
	}
	return 1<<s.BitLength - 1
}
