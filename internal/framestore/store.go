// Package framestore 缓存每个帧内各协议信号的最近观测值。
//
// 写入按到达顺序生效（last-write-wins），不按 observed_at 重排：
// 两条并发更新中后完成的一条覆盖先完成的。这是有意为之的
// 尽力而为一致性，不是线性一致，调用方不应依赖时间戳裁决。
package framestore

import (
	"sync"
	"time"
)

// Observed 一个协议信号的最近观测值。
// 数值为变换后的协议域浮点值，量化到位域发生在编码阶段。
type Observed struct {
	Value      float64
	ObservedAt time.Time
}

// Store 帧值缓存。按帧分段加锁，不同帧的更新与快照互不阻塞。
// 条目只覆盖、不删除：从未观测过的信号就是 unset，编码时取默认值。
type Store struct {
	mu     sync.RWMutex
	frames map[uint32]*frameEntry
}

type frameEntry struct {
	mu     sync.RWMutex
	values map[string]Observed
}

// New 创建空缓存
func New() *Store {
	return &Store{frames: make(map[uint32]*frameEntry)}
}

func (s *Store) entry(frameID uint32) *frameEntry {
	s.mu.RLock()
	e, ok := s.frames[frameID]
	s.mu.RUnlock()
	if ok {
		return e
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok = s.frames[frameID]; ok {
		return e
	}
	e = &frameEntry{values: make(map[string]Observed)}
	s.frames[frameID] = e
	return e
}

// Update 记录一次观测，覆盖同名信号的旧值
func (s *Store) Update(frameID uint32, signal string, value float64, at time.Time) {
	e := s.entry(frameID)
	e.mu.Lock()
	e.values[signal] = Observed{Value: value, ObservedAt: at}
	e.mu.Unlock()
}

// Snapshot 返回某帧观测值的时点副本。副本与缓存完全隔离，
// 编码器读它的同时后续更新可以继续写入缓存。
func (s *Store) Snapshot(frameID uint32) map[string]Observed {
	s.mu.RLock()
	e, ok := s.frames[frameID]
	s.mu.RUnlock()
	if !ok {
		return map[string]Observed{}
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[string]Observed, len(e.values))
	for k, v := range e.values {
		out[k] = v
	}
	return out
}

// SignalCount 当前持有观测值的信号总数（指标用）
func (s *Store) SignalCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, e := range s.frames {
		e.mu.RLock()
		n += len(e.values)
		e.mu.RUnlock()
	}
	return n
}
