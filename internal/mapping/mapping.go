// Package mapping 维护信号图路径到协议信号的映射表。
// 表在加载期构建并整体校验，之后只读，可被所有组件安全共享。
package mapping

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/taoyao-code/vss-can-bridge/internal/catalog"
	"github.com/taoyao-code/vss-can-bridge/internal/transform"
)

// ErrInvalid 映射定义不满足模式约束（加载期致命错误，不做部分加载）
var ErrInvalid = errors.New("mapping: invalid definition")

// Entry 一条映射：信号图路径 → 协议信号 + 变换。
// 同一路径可以出现在多条 Entry 中（一个图信号驱动多个协议信号）。
type Entry struct {
	Path      string
	Signal    *catalog.Signal
	Frame     *catalog.Frame
	Transform transform.Transform
}

// Table 只读映射表
type Table struct {
	byPath  map[string][]*Entry
	entries []*Entry
}

type entryDoc struct {
	Path      string          `yaml:"path"`
	Signal    string          `yaml:"signal"`
	Transform *transform.Spec `yaml:"transform"`
}

type fileDoc struct {
	Mappings []entryDoc `yaml:"mappings"`
}

// Load 从 YAML 文件读取映射定义并对照目录校验
func Load(path string, cat *catalog.Catalog) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mapping: %w", err)
	}
	return Parse(data, cat)
}

// Parse 解析并校验映射定义。每个被引用的协议信号都必须存在于目录中，
// 未解析引用是加载期错误而非运行期错误。
func Parse(data []byte, cat *catalog.Catalog) (*Table, error) {
	var doc fileDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse mapping: %w", err)
	}
	if len(doc.Mappings) == 0 {
		return nil, fmt.Errorf("%w: no mappings declared", ErrInvalid)
	}

	t := &Table{byPath: make(map[string][]*Entry, len(doc.Mappings))}
	seen := make(map[string]bool, len(doc.Mappings))

	for i, ed := range doc.Mappings {
		if ed.Path == "" {
			return nil, fmt.Errorf("%w: entry %d missing path", ErrInvalid, i)
		}
		if ed.Signal == "" {
			return nil, fmt.Errorf("%w: %s missing signal", ErrInvalid, ed.Path)
		}
		key := ed.Path + "\x00" + ed.Signal
		if seen[key] {
			return nil, fmt.Errorf("%w: duplicate mapping %s -> %s", ErrInvalid, ed.Path, ed.Signal)
		}
		seen[key] = true

		sig, frame, ok := cat.SignalByName(ed.Signal)
		if !ok {
			return nil, fmt.Errorf("%w: %s references unknown protocol signal %s", ErrInvalid, ed.Path, ed.Signal)
		}

		var spec transform.Spec
		if ed.Transform != nil {
			spec = *ed.Transform
		}
		tr, err := transform.New(spec)
		if err != nil {
			return nil, fmt.Errorf("%w: %s -> %s: %v", ErrInvalid, ed.Path, ed.Signal, err)
		}

		entry := &Entry{Path: ed.Path, Signal: sig, Frame: frame, Transform: tr}
		t.byPath[ed.Path] = append(t.byPath[ed.Path], entry)
		t.entries = append(t.entries, entry)
	}
	return t, nil
}

// Resolve 查找路径对应的全部映射条目；未映射路径返回 false
func (t *Table) Resolve(graphPath string) ([]*Entry, bool) {
	entries, ok := t.byPath[graphPath]
	return entries, ok
}

// SubscribedPaths 返回全部被映射的路径（排序后），供订阅方登记
func (t *Table) SubscribedPaths() []string {
	paths := make([]string, 0, len(t.byPath))
	for p := range t.byPath {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Entries 返回全部条目（诊断接口遍历用，调用方不得修改）
func (t *Table) Entries() []*Entry { return t.entries }

// Len 条目数量
func (t *Table) Len() int { return len(t.entries) }
