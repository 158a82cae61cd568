package service

import (
	"context"
	"time"

	"ahsan-gpt-go/pkg/log"
)

// NotificationKind 标识认证邮件的类型。
type NotificationKind string

const (
	NotifyVerifyEmail   NotificationKind = "verify_email"
	NotifyPasswordReset NotificationKind = "password_reset"
)

// AuthNotification 是交给外部邮件服务投递的任务。
type AuthNotification struct {
	Kind      NotificationKind `json:"kind"`
	Email     string           `json:"email"`
	Token     string           `json:"token"`
	CreatedAt time.Time        `json:"createdAt"`
}

// AuthNotifier 投递认证相关邮件。
type AuthNotifier interface {
	Notify(ctx context.Context, n AuthNotification) error
}

// Publisher 是 kafka.Producer 满足的最小接口。
type Publisher interface {
	Publish(ctx context.Context, key string, value interface{}) error
}

type queueNotifier struct {
	publisher Publisher
}

// NewQueueNotifier 把通知写入消息队列，以邮箱作为分区 key。
func NewQueueNotifier(p Publisher) AuthNotifier {
	return &queueNotifier{publisher: p}
}

func (n *queueNotifier) Notify(ctx context.Context, msg AuthNotification) error {
	return n.publisher.Publish(ctx, msg.Email, msg)
}

type logNotifier struct{}

// NewLogNotifier 在没有配置消息队列时使用，只记录日志。
func NewLogNotifier() AuthNotifier {
	return logNotifier{}
}

func (logNotifier) Notify(ctx context.Context, msg AuthNotification) error {
	log.Infow("认证通知未投递（未配置 Kafka）", "kind", msg.Kind, "email", msg.Email)
	return nil
}
