package catalog

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrInvalid 目录定义不满足模式约束（加载期致命错误）
var ErrInvalid = errors.New("catalog: invalid definition")

type fileDoc struct {
	Frames []frameDoc `yaml:"frames"`
}

type frameDoc struct {
	ID      uint32      `yaml:"id"`
	Name    string      `yaml:"name"`
	Length  int         `yaml:"length"`
	Signals []signalDoc `yaml:"signals"`
}

type signalDoc struct {
	Name      string   `yaml:"name"`
	StartBit  *int     `yaml:"start_bit"`
	Length    int      `yaml:"length"`
	ByteOrder string   `yaml:"byte_order"`
	Signed    bool     `yaml:"signed"`
	Scale     *float64 `yaml:"scale"`
	Offset    float64  `yaml:"offset"`
	Default   int64    `yaml:"default"`
}

// Load 从 YAML 文件读取协议信号目录
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

// Parse 解析并校验目录定义。任何模式违规都整体失败，不做部分加载。
func Parse(data []byte) (*Catalog, error) {
	var doc fileDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if len(doc.Frames) == 0 {
		return nil, fmt.Errorf("%w: no frames declared", ErrInvalid)
	}

	cat := &Catalog{
		frames:      make(map[uint32]*Frame, len(doc.Frames)),
		signalOwner: make(map[string]*Frame),
	}

	for _, fd := range doc.Frames {
		if _, dup := cat.frames[fd.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate frame id 0x%X", ErrInvalid, fd.ID)
		}
		if fd.Length < 1 || fd.Length > 64 {
			return nil, fmt.Errorf("%w: frame 0x%X length %d out of range 1..64", ErrInvalid, fd.ID, fd.Length)
		}

		frame := &Frame{
			ID:     fd.ID,
			Name:   fd.Name,
			Length: fd.Length,
			byName: make(map[string]*Signal, len(fd.Signals)),
		}

		// 按绝对位编号记录占用，检测同帧信号重叠
		occupied := make(map[int]string, fd.Length*8)

		for _, sd := range fd.Signals {
			sig, err := buildSignal(fd, sd)
			if err != nil {
				return nil, err
			}
			if _, dup := frame.byName[sig.Name]; dup {
				return nil, fmt.Errorf("%w: frame 0x%X duplicate signal %s", ErrInvalid, fd.ID, sig.Name)
			}
			if owner, dup := cat.signalOwner[sig.Name]; dup {
				return nil, fmt.Errorf("%w: signal %s declared in frames 0x%X and 0x%X", ErrInvalid, sig.Name, owner.ID, fd.ID)
			}
			for _, p := range sig.bitPositions() {
				if p < 0 || p >= fd.Length*8 {
					return nil, fmt.Errorf("%w: frame 0x%X signal %s bit %d outside %d-byte frame",
						ErrInvalid, fd.ID, sig.Name, p, fd.Length)
				}
				if other, used := occupied[p]; used {
					return nil, fmt.Errorf("%w: frame 0x%X signals %s and %s overlap at bit %d",
						ErrInvalid, fd.ID, other, sig.Name, p)
				}
				occupied[p] = sig.Name
			}

			frame.Signals = append(frame.Signals, sig)
			frame.byName[sig.Name] = sig
			cat.signalOwner[sig.Name] = frame
		}

		if err := packDefaults(frame); err != nil {
			return nil, err
		}
		cat.frames[fd.ID] = frame
	}
	return cat, nil
}

func buildSignal(fd frameDoc, sd signalDoc) (*Signal, error) {
	if sd.Name == "" {
		return nil, fmt.Errorf("%w: frame 0x%X has signal without name", ErrInvalid, fd.ID)
	}
	if sd.StartBit == nil {
		return nil, fmt.Errorf("%w: frame 0x%X signal %s missing start_bit", ErrInvalid, fd.ID, sd.Name)
	}
	if sd.Length < 1 || sd.Length > 64 {
		return nil, fmt.Errorf("%w: frame 0x%X signal %s bit length %d out of range 1..64",
			ErrInvalid, fd.ID, sd.Name, sd.Length)
	}

	order := ByteOrderLittle
	switch sd.ByteOrder {
	case "", "little", "intel":
		order = ByteOrderLittle
	case "big", "motorola":
		order = ByteOrderBig
	default:
		return nil, fmt.Errorf("%w: frame 0x%X signal %s unknown byte_order %q",
			ErrInvalid, fd.ID, sd.Name, sd.ByteOrder)
	}

	scale := 1.0
	if sd.Scale != nil {
		scale = *sd.Scale
	}
	if scale == 0 {
		return nil, fmt.Errorf("%w: frame 0x%X signal %s scale must be non-zero", ErrInvalid, fd.ID, sd.Name)
	}

	sig := &Signal{
		Name:       sd.Name,
		FrameID:    fd.ID,
		StartBit:   *sd.StartBit,
		BitLength:  sd.Length,
		ByteOrder:  order,
		Signed:     sd.Signed,
		Scale:      scale,
		Offset:     sd.Offset,
		DefaultRaw: sd.Default,
	}

	lo, hi := sig.RawRange()
	if sig.DefaultRaw < lo || sig.DefaultRaw > hi {
		return nil, fmt.Errorf("%w: frame 0x%X signal %s default %d outside raw range [%d, %d]",
			ErrInvalid, fd.ID, sd.Name, sig.DefaultRaw, lo, hi)
	}
	return sig, nil
}

// packDefaults 预打包默认载荷，EncodeFrame 直接在其副本上覆盖观测值
func packDefaults(frame *Frame) error {
	payload := make([]byte, frame.Length)
	for _, sig := range frame.Signals {
		if err := sig.Pack(payload, uint64(sig.DefaultRaw)&sig.RawMask()); err != nil {
			return fmt.Errorf("%w: frame 0x%X default for %s: %v", ErrInvalid, frame.ID, sig.Name, err)
		}
	}
	frame.defaultPayload = payload
	return nil
}
