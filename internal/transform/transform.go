// Package transform 实现信号图数值与协议数值之间的纯函数变换。
// 所有变换在加载期构建、运行期只读，可被任意多个 goroutine 并发调用。
package transform

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInvalidSpec 变换声明不合法（加载期错误）
	ErrInvalidSpec = errors.New("transform: invalid spec")
	// ErrNotNumeric 输入值无法作为数值参与变换（按条丢弃）
	ErrNotNumeric = errors.New("transform: value is not numeric")
	// ErrNoMatch 离散映射表中没有匹配项（按条丢弃）
	ErrNoMatch = errors.New("transform: no mapping entry for value")
	// ErrDivisionByZero 表达式求值除零
	ErrDivisionByZero = errors.New("transform: division by zero")
	// ErrNotFinite 求值结果为 NaN/Inf
	ErrNotFinite = errors.New("transform: result is not finite")
	// ErrNotInvertible 表达式变换不支持反向求值
	ErrNotInvertible = errors.New("transform: expression is not invertible")
)

// Transform 信号图值 ⇄ 协议数值的双向变换。
// Encode 产出的协议值保留浮点精度，量化到位域整数发生在打包阶段。
type Transform interface {
	Encode(value any) (float64, error)
	Decode(protocol float64) (any, error)
	Kind() string
}

// Pair 离散映射的一条 from→to 规则
type Pair struct {
	From any `yaml:"from" json:"from"`
	To   any `yaml:"to" json:"to"`
}

// Spec 映射文件中的变换声明，三种形态互斥：
// math 表达式、mapping 离散映射、scale/offset 线性变换。
// 全空表示恒等变换（原始实现对缺省 transform 的行为）。
type Spec struct {
	Math    string   `yaml:"math" json:"math"`
	Mapping []Pair   `yaml:"mapping" json:"mapping"`
	Scale   *float64 `yaml:"scale" json:"scale"`
	Offset  *float64 `yaml:"offset" json:"offset"`
}

// New 按声明构建变换，声明不合法时返回 ErrInvalidSpec 类错误
func New(spec Spec) (Transform, error) {
	kinds := 0
	if spec.Math != "" {
		kinds++
	}
	if len(spec.Mapping) > 0 {
		kinds++
	}
	if spec.Scale != nil || spec.Offset != nil {
		kinds++
	}
	if kinds > 1 {
		return nil, fmt.Errorf("%w: math, mapping and scale/offset are mutually exclusive", ErrInvalidSpec)
	}

	switch {
	case spec.Math != "":
		root, err := parseExpr(spec.Math)
		if err != nil {
			return nil, err
		}
		return &exprTransform{src: spec.Math, root: root}, nil

	case len(spec.Mapping) > 0:
		pairs := make([]valuePair, 0, len(spec.Mapping))
		for i, p := range spec.Mapping {
			if p.From == nil || p.To == nil {
				return nil, fmt.Errorf("%w: mapping entry %d missing from/to", ErrInvalidSpec, i)
			}
			to, err := toNumber(p.To)
			if err != nil {
				return nil, fmt.Errorf("%w: mapping entry %d: to value %v is not numeric", ErrInvalidSpec, i, p.To)
			}
			pairs = append(pairs, valuePair{from: p.From, to: to})
		}
		return &valueMap{pairs: pairs}, nil

	case spec.Scale != nil || spec.Offset != nil:
		scale := 1.0
		if spec.Scale != nil {
			scale = *spec.Scale
		}
		if scale == 0 {
			return nil, fmt.Errorf("%w: scale must be non-zero", ErrInvalidSpec)
		}
		offset := 0.0
		if spec.Offset != nil {
			offset = *spec.Offset
		}
		return &linear{scale: scale, offset: offset}, nil

	default:
		return identity{}, nil
	}
}

// identity 无声明变换时的直通
type identity struct{}

func (identity) Encode(value any) (float64, error) { return toNumber(value) }
func (identity) Decode(protocol float64) (any, error) {
	return protocol, nil
}
func (identity) Kind() string { return "identity" }

// linear protocol = graph*scale + offset，Decode 为代数逆
type linear struct {
	scale  float64
	offset float64
}

func (t *linear) Encode(value any) (float64, error) {
	x, err := toNumber(value)
	if err != nil {
		return 0, err
	}
	return x*t.scale + t.offset, nil
}

func (t *linear) Decode(protocol float64) (any, error) {
	return (protocol - t.offset) / t.scale, nil
}

func (t *linear) Kind() string { return "linear" }

type valuePair struct {
	from any
	to   float64
}

// valueMap 离散 from→to 映射，首个匹配生效
type valueMap struct {
	pairs []valuePair
}

func (t *valueMap) Encode(value any) (float64, error) {
	for _, p := range t.pairs {
		if looseEqual(p.from, value) {
			return p.to, nil
		}
	}
	return 0, fmt.Errorf("%w: %v", ErrNoMatch, value)
}

func (t *valueMap) Decode(protocol float64) (any, error) {
	for _, p := range t.pairs {
		if p.to == protocol {
			return p.from, nil
		}
	}
	return nil, fmt.Errorf("%w: %v", ErrNoMatch, protocol)
}

func (t *valueMap) Kind() string { return "mapping" }

// exprTransform 加载期解析一次的表达式树，自由变量为 x
type exprTransform struct {
	src  string
	root node
}

func (t *exprTransform) Encode(value any) (float64, error) {
	x, err := toNumber(value)
	if err != nil {
		return 0, err
	}
	out, err := t.root.eval(x)
	if err != nil {
		return 0, fmt.Errorf("eval %q: %w", t.src, err)
	}
	if math.IsNaN(out) || math.IsInf(out, 0) {
		return 0, fmt.Errorf("eval %q: %w", t.src, ErrNotFinite)
	}
	return out, nil
}

func (t *exprTransform) Decode(protocol float64) (any, error) {
	return nil, fmt.Errorf("%q: %w", t.src, ErrNotInvertible)
}

func (t *exprTransform) Kind() string { return "math" }

// toNumber 收敛常见标量类型；bool 按 0/1 处理（与原始实现一致）
func toNumber(value any) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int8:
		return float64(v), nil
	case int16:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case uint:
		return float64(v), nil
	case uint8:
		return float64(v), nil
	case uint16:
		return float64(v), nil
	case uint32:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, fmt.Errorf("%w: %T", ErrNotNumeric, value)
	}
}

// looseEqual 离散映射的匹配比较：数值按 float64 归一，bool/string 精确比较
func looseEqual(a, b any) bool {
	if na, err := toNumber(a); err == nil {
		// bool 与数值不互相匹配，避免 true 误配 1
		_, aBool := a.(bool)
		_, bBool := b.(bool)
		if aBool != bBool {
			return false
		}
		nb, err := toNumber(b)
		return err == nil && na == nb
	}
	if sa, ok := a.(string); ok {
		sb, ok := b.(string)
		return ok && sa == sb
	}
	return false
}
