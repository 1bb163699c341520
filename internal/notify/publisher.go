package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	cfgpkg "github.com/taoyao-code/esctl/internal/config"
	"github.com/taoyao-code/esctl/internal/render"
)

// Notification 一帧设备上报，转发给其他订阅者
type Notification struct {
	OpID   string       `json:"op_id"`
	Op     string       `json:"op"`
	Device string       `json:"device"`
	At     time.Time    `json:"at"`
	Entry  render.Entry `json:"entry"`
}

// Publisher 通知转发；发布失败不影响设备操作本身
type Publisher interface {
	Publish(ctx context.Context, n Notification) error
	Close() error
}

// NopPublisher 未启用转发时使用
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Notification) error { return nil }
func (NopPublisher) Close() error                                { return nil }

// publishClient go-redis 客户端中用到的部分
type publishClient interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Ping(ctx context.Context) *redis.StatusCmd
}

// RedisPublisher 通过 Redis Pub/Sub 转发（只发不存）
type RedisPublisher struct {
	client  publishClient
	channel string
	close   func() error
}

// NewRedisPublisher 创建并探活 Redis 连接
func NewRedisPublisher(cfg cfgpkg.NotifyConfig) (*RedisPublisher, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        cfg.Redis.Addr,
		Password:    cfg.Redis.Password,
		DB:          cfg.Redis.DB,
		DialTimeout: cfg.Redis.DialTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &RedisPublisher{client: rdb, channel: cfg.Channel, close: rdb.Close}, nil
}

// Publish 以 JSON 发布一条通知
func (p *RedisPublisher) Publish(ctx context.Context, n Notification) error {
	b, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, b).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", p.channel, err)
	}
	return nil
}

// Ping 探活（健康检查使用）
func (p *RedisPublisher) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

// Close 关闭连接
func (p *RedisPublisher) Close() error {
	if p.close == nil {
		return nil
	}
	return p.close()
}

// New 按配置返回转发器；未启用时返回 NopPublisher
func New(cfg cfgpkg.NotifyConfig) (Publisher, error) {
	if !cfg.Enabled {
		return NopPublisher{}, nil
	}
	return NewRedisPublisher(cfg)
}

// PublishFrames 只转发帧条目，返回成功条数与第一个错误
func PublishFrames(ctx context.Context, p Publisher, base Notification, entries []render.Entry) (int, error) {
	var (
		sent     int
		firstErr error
	)
	for _, e := range entries {
		if e.Kind != "frame" {
			continue
		}
		n := base
		n.Entry = e
		if err := p.Publish(ctx, n); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		sent++
	}
	return sent, firstErr
}
