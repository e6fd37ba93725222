package transport

import (
	"encoding/hex"

	"go.uber.org/zap"
)

// Logged 传输装饰器：每次发送打 debug 日志，发送失败打 warn
type Logged struct {
	next   Transport
	logger *zap.Logger
}

// NewLogged 包装一个传输
func NewLogged(next Transport, logger *zap.Logger) *Logged {
	return &Logged{next: next, logger: logger}
}

func (l *Logged) Send(frameID uint32, payload []byte) error {
	err := l.next.Send(frameID, payload)
	if err != nil {
		l.logger.Warn("frame send failed",
			zap.Uint32("frame_id", frameID),
			zap.Error(err))
		return err
	}
	l.logger.Debug("frame sent",
		zap.Uint32("frame_id", frameID),
		zap.String("payload", hex.EncodeToString(payload)))
	return nil
}

func (l *Logged) Close() error { return l.next.Close() }
