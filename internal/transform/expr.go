package transform

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// 表达式在加载期解析为类型化语法树，运行期只做树求值，
// 不做任何动态代码执行。支持 + - * / 一元负号、括号与下列函数。

type node interface {
	eval(x float64) (float64, error)
}

type numNode float64

func (n numNode) eval(float64) (float64, error) { return float64(n), nil }

type varNode struct{}

func (varNode) eval(x float64) (float64, error) { return x, nil }

type binNode struct {
	op   byte
	l, r node
}

func (n *binNode) eval(x float64) (float64, error) {
	l, err := n.l.eval(x)
	if err != nil {
		return 0, err
	}
	r, err := n.r.eval(x)
	if err != nil {
		return 0, err
	}
	switch n.op {
	case '+':
		return l + r, nil
	case '-':
		return l - r, nil
	case '*':
		return l * r, nil
	default:
		if r == 0 {
			return 0, ErrDivisionByZero
		}
		return l / r, nil
	}
}

type negNode struct{ arg node }

func (n *negNode) eval(x float64) (float64, error) {
	v, err := n.arg.eval(x)
	return -v, err
}

type callNode struct {
	name string
	fn   func([]float64) float64
	args []node
}

func (n *callNode) eval(x float64) (float64, error) {
	vals := make([]float64, len(n.args))
	for i, a := range n.args {
		v, err := a.eval(x)
		if err != nil {
			return 0, err
		}
		vals[i] = v
	}
	return n.fn(vals), nil
}

// funcTable 受支持的函数及元数
var funcTable = map[string]struct {
	arity int
	fn    func([]float64) float64
}{
	"floor": {1, func(v []float64) float64 { return math.Floor(v[0]) }},
	"ceil":  {1, func(v []float64) float64 { return math.Ceil(v[0]) }},
	"abs":   {1, func(v []float64) float64 { return math.Abs(v[0]) }},
	"round": {1, func(v []float64) float64 { return math.Round(v[0]) }},
	"sqrt":  {1, func(v []float64) float64 { return math.Sqrt(v[0]) }},
	"min":   {2, func(v []float64) float64 { return math.Min(v[0], v[1]) }},
	"max":   {2, func(v []float64) float64 { return math.Max(v[0], v[1]) }},
}

type tokenKind int

const (
	tokNumber tokenKind = iota
	tokIdent
	tokOp    // + - * /
	tokLPar  // (
	tokRPar  // )
	tokComma // ,
	tokEnd
)

type token struct {
	kind tokenKind
	text string
	num  float64
}

type parser struct {
	src  string
	toks []token
	pos  int
}

// parseExpr 解析表达式字符串，失败返回 ErrInvalidSpec 类错误
func parseExpr(src string) (node, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{src: src, toks: toks}
	root, err := p.parseSum()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokEnd {
		return nil, p.errorf("unexpected %q", p.peek().text)
	}
	return root, nil
}

func lex(src string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t':
			i++
		case c == '(':
			toks = append(toks, token{kind: tokLPar, text: "("})
			i++
		case c == ')':
			toks = append(toks, token{kind: tokRPar, text: ")"})
			i++
		case c == ',':
			toks = append(toks, token{kind: tokComma, text: ","})
			i++
		case c == '+' || c == '-' || c == '*' || c == '/':
			toks = append(toks, token{kind: tokOp, text: string(c)})
			i++
		case c >= '0' && c <= '9' || c == '.':
			j := i
			for j < len(src) && (src[j] >= '0' && src[j] <= '9' || src[j] == '.') {
				j++
			}
			n, err := strconv.ParseFloat(src[i:j], 64)
			if err != nil {
				return nil, fmt.Errorf("%w: bad number %q in %q", ErrInvalidSpec, src[i:j], src)
			}
			toks = append(toks, token{kind: tokNumber, text: src[i:j], num: n})
			i = j
		case unicode.IsLetter(rune(c)) || c == '_':
			j := i
			for j < len(src) && (unicode.IsLetter(rune(src[j])) || unicode.IsDigit(rune(src[j])) || src[j] == '_') {
				j++
			}
			toks = append(toks, token{kind: tokIdent, text: src[i:j]})
			i = j
		default:
			return nil, fmt.Errorf("%w: unexpected character %q in %q", ErrInvalidSpec, string(c), src)
		}
	}
	return append(toks, token{kind: tokEnd, text: "end of expression"}), nil
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEnd {
		p.pos++
	}
	return t
}

func (p *parser) errorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s in %q", ErrInvalidSpec, fmt.Sprintf(format, args...), p.src)
}

// parseSum := term (('+'|'-') term)*
func (p *parser) parseSum() (node, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokOp && (p.peek().text == "+" || p.peek().text == "-") {
		op := p.next().text[0]
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = &binNode{op: op, l: left, r: right}
	}
	return left, nil
}

// parseTerm := unary (('*'|'/') unary)*
func (p *parser) parseTerm() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokOp && (p.peek().text == "*" || p.peek().text == "/") {
		op := p.next().text[0]
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &binNode{op: op, l: left, r: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (node, error) {
	if p.peek().kind == tokOp && p.peek().text == "-" {
		p.next()
		arg, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &negNode{arg: arg}, nil
	}
	if p.peek().kind == tokOp && p.peek().text == "+" {
		p.next()
		return p.parseUnary()
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (node, error) {
	switch t := p.next(); t.kind {
	case tokNumber:
		return numNode(t.num), nil

	case tokLPar:
		inner, err := p.parseSum()
		if err != nil {
			return nil, err
		}
		if p.next().kind != tokRPar {
			return nil, p.errorf("missing )")
		}
		return inner, nil

	case tokIdent:
		if strings.EqualFold(t.text, "x") {
			return varNode{}, nil
		}
		decl, ok := funcTable[t.text]
		if !ok {
			return nil, p.errorf("unknown identifier %q", t.text)
		}
		if p.next().kind != tokLPar {
			return nil, p.errorf("function %s requires arguments", t.text)
		}
		var args []node
		for {
			arg, err := p.parseSum()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			sep := p.next()
			if sep.kind == tokRPar {
				break
			}
			if sep.kind != tokComma {
				return nil, p.errorf("expected , or ) after argument of %s", t.text)
			}
		}
		if len(args) != decl.arity {
			return nil, p.errorf("function %s expects %d argument(s), got %d", t.text, decl.arity, len(args))
		}
		return &callNode{name: t.text, fn: decl.fn, args: args}, nil

	default:
		return nil, p.errorf("unexpected %q", t.text)
	}
}
