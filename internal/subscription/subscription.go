// Package subscription 定义信号图更新源契约。
// 核心只依赖 Handler 回调收到的 (path, value, timestamp) 三元组，
// 更新到底来自单条复用流还是每路径一条流由具体源决定。
package subscription

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Handler 每条更新的回调。实现必须自行消化错误，不得 panic。
type Handler func(path string, value any, ts time.Time)

// Update 订阅消息的线格式（JSON）
type Update struct {
	Path      string    `json:"path"`
	Value     any       `json:"value"`
	Timestamp time.Time `json:"ts"`
}

// ErrBadUpdate 消息缺少必填字段或不是合法 JSON
var ErrBadUpdate = errors.New("subscription: bad update message")

// ParseUpdate 解析一条更新消息。时间戳缺省按当前时间补齐。
func ParseUpdate(data []byte) (Update, error) {
	var u Update
	if err := json.Unmarshal(data, &u); err != nil {
		return Update{}, fmt.Errorf("%w: %v", ErrBadUpdate, err)
	}
	if u.Path == "" {
		return Update{}, fmt.Errorf("%w: missing path", ErrBadUpdate)
	}
	if u.Value == nil {
		return Update{}, fmt.Errorf("%w: missing value", ErrBadUpdate)
	}
	if u.Timestamp.IsZero() {
		u.Timestamp = time.Now()
	}
	return u, nil
}
