// Package notify publishes high-severity alerts on a Redis channel for
// downstream consumers (mail, chat, dashboards).
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/JadsonMattos/vigia-pix/internal/domain/amendments"
)

const DefaultChannel = "vigia:alerts"

type publisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// Message is the payload published for one amendment.
type Message struct {
	AmendmentID string             `json:"amendment_id"`
	Code        string             `json:"code"`
	Recipient   string             `json:"recipient"`
	Alerts      []amendments.Alert `json:"alerts"`
	SentAt      time.Time          `json:"sent_at"`
}

// RedisNotifier implements amendments.Notifier.
type RedisNotifier struct {
	rdb     publisher
	channel string
	now     func() time.Time
}

func NewRedisNotifier(rdb publisher, channel string) *RedisNotifier {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisNotifier{rdb: rdb, channel: channel, now: time.Now}
}

// Notify publishes only high-severity alerts; nothing is sent otherwise.
func (n *RedisNotifier) Notify(ctx context.Context, a *amendments.Amendment, alerts []amendments.Alert) error {
	var high []amendments.Alert
	for _, al := range alerts {
		if al.Severity == amendments.SeverityHigh {
			high = append(high, al)
		}
	}
	if len(high) == 0 {
		return nil
	}

	b, err := json.Marshal(Message{
		AmendmentID: string(a.ID),
		Code:        a.Code(),
		Recipient:   a.Recipient.Name,
		Alerts:      high,
		SentAt:      n.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode alert message: %w", err)
	}
	if err := n.rdb.Publish(ctx, n.channel, b).Err(); err != nil {
		return fmt.Errorf("publish alerts: %w", err)
	}
	return nil
}
