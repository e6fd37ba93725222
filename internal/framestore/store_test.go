package framestore

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnsetVersusObservedZero(t *testing.T) {
	s := New()

	// 从未观测过的信号不出现在快照里
	snap := s.Snapshot(0x102)
	_, ok := snap["a"]
	assert.False(t, ok)

	// 观测到零值后必须出现，不能和 unset 混淆
	s.Update(0x102, "a", 0, time.Now())
	snap = s.Snapshot(0x102)
	obs, ok := snap["a"]
	require.True(t, ok)
	assert.Equal(t, 0.0, obs.Value)
}

func TestLastWriteWins(t *testing.T) {
	s := New()
	early := time.Now().Add(-time.Hour)
	late := time.Now()

	// 到达顺序生效，不按时间戳重排
	s.Update(1, "a", 10, late)
	s.Update(1, "a", 20, early)

	obs := s.Snapshot(1)["a"]
	assert.Equal(t, 20.0, obs.Value)
	assert.Equal(t, early, obs.ObservedAt)
}

func TestSnapshotIsolation(t *testing.T) {
	s := New()
	s.Update(1, "a", 1, time.Now())

	snap := s.Snapshot(1)
	snap["a"] = Observed{Value: 99}
	snap["b"] = Observed{Value: 5}

	// 改动快照不得影响缓存
	fresh := s.Snapshot(1)
	assert.Equal(t, 1.0, fresh["a"].Value)
	_, ok := fresh["b"]
	assert.False(t, ok)
}

func TestSignalCount(t *testing.T) {
	s := New()
	assert.Zero(t, s.SignalCount())

	s.Update(1, "a", 1, time.Now())
	s.Update(1, "a", 2, time.Now()) // 覆盖不增加
	s.Update(1, "b", 1, time.Now())
	s.Update(2, "c", 1, time.Now())
	assert.Equal(t, 3, s.SignalCount())
}

func TestConcurrentUpdatesAndSnapshots(t *testing.T) {
	s := New()
	const workers = 8
	const rounds = 200

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			signal := []string{"a", "b", "c", "d"}[id%4]
			for i := 0; i < rounds; i++ {
				s.Update(0x102, signal, float64(i), time.Now())
				_ = s.Snapshot(0x102)
				s.Update(uint32(id), "x", float64(i), time.Now())
			}
		}(w)
	}
	wg.Wait()

	snap := s.Snapshot(0x102)
	require.Len(t, snap, 4)
	for _, name := range []string{"a", "b", "c", "d"} {
		assert.Equal(t, float64(rounds-1), snap[name].Value)
	}
}
