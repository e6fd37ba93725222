package subscription

import (
	"context"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisSource 基于 Redis pub/sub 的更新源。
// 信号图一侧把 Update JSON 发布到单个频道，这里按映射路径过滤后回调。
type RedisSource struct {
	client  *redis.Client
	channel string
	logger  *zap.Logger
}

// NewRedisSource 创建 Redis 更新源
func NewRedisSource(client *redis.Client, channel string, logger *zap.Logger) *RedisSource {
	return &RedisSource{client: client, channel: channel, logger: logger}
}

// Run 订阅并循环投递更新（阻塞，ctx 取消后返回）。
// paths 非空时只投递这些路径；坏消息记日志后跳过，循环不中断。
func (s *RedisSource) Run(ctx context.Context, paths []string, h Handler) error {
	sub := s.client.Subscribe(ctx, s.channel)
	defer func() { _ = sub.Close() }()

	// 确认订阅建立，失败（如 redis 不可达）直接返回给调用方
	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	s.logger.Info("subscribed to signal updates",
		zap.String("channel", s.channel),
		zap.Int("paths", len(paths)))

	var filter map[string]struct{}
	if len(paths) > 0 {
		filter = make(map[string]struct{}, len(paths))
		for _, p := range paths {
			filter[p] = struct{}{}
		}
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			u, err := ParseUpdate([]byte(msg.Payload))
			if err != nil {
				s.logger.Warn("bad update message", zap.Error(err))
				continue
			}
			if filter != nil {
				if _, mapped := filter[u.Path]; !mapped {
					continue
				}
			}
			h(u.Path, u.Value, u.Timestamp)
		}
	}
}
