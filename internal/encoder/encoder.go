// Package encoder 将帧值缓存与默认载荷合并为可发送的字节载荷。
package encoder

import (
	"errors"
	"fmt"
	"math"

	"github.com/taoyao-code/vss-can-bridge/internal/catalog"
	"github.com/taoyao-code/vss-can-bridge/internal/framestore"
)

// ErrUnknownFrame 帧 ID 不在目录中（仅该次调用失败，调用方可跳过）
var ErrUnknownFrame = errors.New("encoder: unknown frame")

// RangeWarning 数值超出位域可表示区间，已饱和截断（非致命）
type RangeWarning struct {
	FrameID   uint32
	Signal    string
	Value     float64
	ClampedTo int64
}

func (w RangeWarning) String() string {
	return fmt.Sprintf("frame 0x%X signal %s: value %g clamped to %d", w.FrameID, w.Signal, w.Value, w.ClampedTo)
}

// Encoder 帧编码器。只读取缓存快照，从不修改缓存。
type Encoder struct {
	cat   *catalog.Catalog
	store *framestore.Store
}

// New 创建编码器
func New(cat *catalog.Catalog, store *framestore.Store) *Encoder {
	return &Encoder{cat: cat, store: store}
}

// EncodeFrame 组装一帧：
// 以预打包的默认载荷为底，对快照中有观测值的信号逐个量化、
// 截断并按位覆盖；无观测值的信号保持默认位不动。
// 输出长度恒等于帧声明长度，对同一快照结果确定。
func (e *Encoder) EncodeFrame(frameID uint32) ([]byte, []RangeWarning, error) {
	frame, ok := e.cat.Frame(frameID)
	if !ok {
		return nil, nil, fmt.Errorf("%w: 0x%X", ErrUnknownFrame, frameID)
	}

	payload := frame.DefaultPayload()
	snapshot := e.store.Snapshot(frameID)

	var warnings []RangeWarning
	for _, sig := range frame.Signals {
		obs, observed := snapshot[sig.Name]
		if !observed {
			continue
		}
		raw, warning := quantize(sig, obs.Value)
		if warning != nil {
			warnings = append(warnings, *warning)
		}
		if err := sig.Pack(payload, uint64(raw)&sig.RawMask()); err != nil {
			// 布局越界本应在加载期被目录校验拦截
			return nil, warnings, err
		}
	}
	return payload, warnings, nil
}

// DecodeFrame 编码的逆：按目录布局解包 payload，返回各信号的物理值。
// 诊断接口与回读测试使用。
func (e *Encoder) DecodeFrame(frameID uint32, payload []byte) (map[string]float64, error) {
	frame, ok := e.cat.Frame(frameID)
	if !ok {
		return nil, fmt.Errorf("%w: 0x%X", ErrUnknownFrame, frameID)
	}
	if len(payload) != frame.Length {
		return nil, fmt.Errorf("%w: frame 0x%X payload length %d, want %d", catalog.ErrCorrupt, frameID, len(payload), frame.Length)
	}

	out := make(map[string]float64, len(frame.Signals))
	for _, sig := range frame.Signals {
		raw, err := sig.Unpack(payload)
		if err != nil {
			return nil, err
		}
		out[sig.Name] = float64(raw)*sig.Scale + sig.Offset
	}
	return out, nil
}

// quantize 物理值 → 位域原始整数。
// 逆线性换算后四舍五入（.5 远离零），再饱和截断到位域区间。
func quantize(sig *catalog.Signal, value float64) (int64, *RangeWarning) {
	raw := math.Round((value - sig.Offset) / sig.Scale)
	lo, hi := sig.RawRange()
	if raw < float64(lo) {
		return lo, &RangeWarning{FrameID: sig.FrameID, Signal: sig.Name, Value: value, ClampedTo: lo}
	}
	if raw > float64(hi) {
		return hi, &RangeWarning{FrameID: sig.FrameID, Signal: sig.Name, Value: value, ClampedTo: hi}
	}
	return int64(raw), nil
}
