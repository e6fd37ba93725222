// Package dispatch 消费信号图变更通知并驱动整条编码发送链路：
// 解析映射 → 变换 → 写入帧值缓存 → 编码所属帧 → 交给总线传输。
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/taoyao-code/vss-can-bridge/internal/encoder"
	"github.com/taoyao-code/vss-can-bridge/internal/framestore"
	"github.com/taoyao-code/vss-can-bridge/internal/mapping"
	"github.com/taoyao-code/vss-can-bridge/internal/metrics"
	"github.com/taoyao-code/vss-can-bridge/internal/transport"
)

var (
	// ErrClosed 调度器已停止接收通知
	ErrClosed = errors.New("dispatch: closed")
	// ErrQueueFull 通知队列已满，本条被丢弃
	ErrQueueFull = errors.New("dispatch: queue full")
)

// Notification 订阅方投递的一次信号图变更
type Notification struct {
	Path      string
	Value     any
	Timestamp time.Time
}

// Recorder 发送日志钩子（可选，如落库的发送流水）。
// Record 失败只记日志，不影响发送链路。
type Recorder interface {
	Record(ctx context.Context, frameID uint32, payload []byte, at time.Time) error
}

// Options 调度器参数
type Options struct {
	QueueSize int     // 通知队列容量，默认 256
	Workers   int     // 并发处理协程数，默认 4
	SendRate  float64 // 每秒最多发送帧数，0 表示不限
	SendBurst int     // 令牌桶突发容量，默认为 SendRate 取整
}

// Dispatcher 调度循环。
// 多个 worker 并发处理通知；单条通知的任何失败都只影响它自己，
// 循环永不因一条坏更新而停止。
type Dispatcher struct {
	table   *mapping.Table
	store   *framestore.Store
	enc     *encoder.Encoder
	tx      transport.Transport
	rec     Recorder
	limiter *rate.Limiter
	logger  *zap.Logger
	met     *metrics.AppMetrics

	workers int
	queue   chan Notification

	mu      sync.Mutex
	closed  bool
	started bool
	wg      sync.WaitGroup
}

// New 创建调度器
func New(table *mapping.Table, store *framestore.Store, enc *encoder.Encoder, tx transport.Transport, opts Options, logger *zap.Logger) *Dispatcher {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}

	var limiter *rate.Limiter
	if opts.SendRate > 0 {
		burst := opts.SendBurst
		if burst <= 0 {
			burst = int(opts.SendRate)
			if burst < 1 {
				burst = 1
			}
		}
		limiter = rate.NewLimiter(rate.Limit(opts.SendRate), burst)
	}

	return &Dispatcher{
		table:   table,
		store:   store,
		enc:     enc,
		tx:      tx,
		limiter: limiter,
		logger:  logger,
		workers: opts.Workers,
		queue:   make(chan Notification, opts.QueueSize),
	}
}

// SetRecorder 安装发送流水钩子
func (d *Dispatcher) SetRecorder(rec Recorder) { d.rec = rec }

// SetMetrics 安装业务指标
func (d *Dispatcher) SetMetrics(m *metrics.AppMetrics) { d.met = m }

// Start 启动 worker。ctx 取消后 worker 放弃剩余队列直接退出；
// 常规停机用 Close：停止接收并处理完队列中已有的通知。
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	if d.started || d.closed {
		d.mu.Unlock()
		return
	}
	d.started = true
	d.mu.Unlock()

	if d.met != nil {
		d.met.QueueDepth.Set(0)
	}
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case n, ok := <-d.queue:
					if !ok {
						return
					}
					d.handle(ctx, n)
				}
			}
		}()
	}
}

// Notify 投递一条通知（非阻塞）。队列满返回 ErrQueueFull 并丢弃，
// 已关闭返回 ErrClosed。
func (d *Dispatcher) Notify(n Notification) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	select {
	case d.queue <- n:
		if d.met != nil {
			d.met.QueueDepth.Set(float64(len(d.queue)))
		}
		return nil
	default:
		d.count("dropped")
		d.logger.Warn("notification dropped, queue full", zap.String("path", n.Path))
		return ErrQueueFull
	}
}

// Close 协作式停机：停止接收新通知，等待在途处理完成
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()
	d.wg.Wait()
}

// handle 处理一条通知。所有按条错误都在此消化：记日志、计指标、返回。
func (d *Dispatcher) handle(ctx context.Context, n Notification) {
	if d.met != nil {
		d.met.QueueDepth.Set(float64(len(d.queue)))
	}

	entries, ok := d.table.Resolve(n.Path)
	if !ok {
		// 不是每个图路径都有映射，静默跳过（仅 debug 级可见）
		d.count("unmapped")
		d.logger.Debug("no mapping for path", zap.String("path", n.Path))
		return
	}

	trace := uuid.NewString()
	log := d.logger.With(zap.String("trace_id", trace), zap.String("path", n.Path))

	// 一条通知可能驱动多个协议信号；每个受影响的帧编码发送一次
	affected := make(map[uint32]struct{}, 1)
	stored := 0
	for _, e := range entries {
		protocolValue, err := e.Transform.Encode(n.Value)
		if err != nil {
			d.count("transform_error")
			log.Warn("transform failed, update dropped",
				zap.String("signal", e.Signal.Name),
				zap.Any("value", n.Value),
				zap.Error(err))
			continue
		}
		d.store.Update(e.Frame.ID, e.Signal.Name, protocolValue, n.Timestamp)
		affected[e.Frame.ID] = struct{}{}
		stored++
	}
	if d.met != nil {
		d.met.StoreSignals.Set(float64(d.store.SignalCount()))
	}
	if stored == 0 {
		return
	}

	for frameID := range affected {
		d.encodeAndSend(ctx, log, frameID)
	}
	d.count("ok")
}

func (d *Dispatcher) encodeAndSend(ctx context.Context, log *zap.Logger, frameID uint32) {
	payload, warnings, err := d.enc.EncodeFrame(frameID)
	if err != nil {
		d.count("encode_error")
		log.Error("frame encode failed", zap.Uint32("frame_id", frameID), zap.Error(err))
		return
	}
	for _, w := range warnings {
		if d.met != nil {
			d.met.RangeWarnings.Inc()
		}
		log.Warn("value clamped to field range", zap.String("warning", w.String()))
	}

	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			d.count("dropped")
			return
		}
	}

	if err := d.tx.Send(frameID, payload); err != nil {
		d.count("send_error")
		log.Warn("transport send failed", zap.Uint32("frame_id", frameID), zap.Error(err))
		return
	}
	if d.met != nil {
		d.met.FramesSent.WithLabelValues(fmt.Sprintf("0x%X", frameID)).Inc()
	}

	if d.rec != nil {
		if err := d.rec.Record(ctx, frameID, payload, time.Now()); err != nil {
			log.Warn("journal record failed", zap.Uint32("frame_id", frameID), zap.Error(err))
		}
	}
}

func (d *Dispatcher) count(result string) {
	if d.met != nil {
		d.met.UpdatesTotal.WithLabelValues(result).Inc()
	}
}
