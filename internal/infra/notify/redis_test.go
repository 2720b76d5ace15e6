package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JadsonMattos/vigia-pix/internal/domain/amendments"
)

type fakePublisher struct {
	channel string
	msgs    [][]byte
	err     error
}

func (f *fakePublisher) Publish(_ context.Context, channel string, message any) *redis.IntCmd {
	f.channel = channel
	f.msgs = append(f.msgs, message.([]byte))
	return redis.NewIntResult(1, f.err)
}

var amendment = &amendments.Amendment{ID: "a-1", Number: "0001", Year: 2024, Recipient: amendments.Recipient{Name: "Cuiabá"}}

func TestNotify_OnlyHighSeverity(t *testing.T) {
	pub := &fakePublisher{}
	n := NewRedisNotifier(pub, "")

	err := n.Notify(context.Background(), amendment, []amendments.Alert{
		{Kind: amendments.AlertLowExecution, Severity: amendments.SeverityMedium},
		{Kind: amendments.AlertLate, Severity: amendments.SeverityHigh, Message: "late"},
	})
	require.NoError(t, err)
	require.Len(t, pub.msgs, 1)
	assert.Equal(t, DefaultChannel, pub.channel)

	var msg Message
	require.NoError(t, json.Unmarshal(pub.msgs[0], &msg))
	assert.Equal(t, "a-1", msg.AmendmentID)
	assert.Equal(t, "2024-0001", msg.Code)
	require.Len(t, msg.Alerts, 1)
	assert.Equal(t, amendments.AlertLate, msg.Alerts[0].Kind)
}

func TestNotify_NothingToSend(t *testing.T) {
	pub := &fakePublisher{}
	err := NewRedisNotifier(pub, "custom").Notify(context.Background(), amendment, []amendments.Alert{
		{Kind: amendments.AlertPlanApprovedWithoutPayment, Severity: amendments.SeverityLow},
	})
	require.NoError(t, err)
	assert.Empty(t, pub.msgs)
}

func TestNotify_PublishError(t *testing.T) {
	pub := &fakePublisher{err: errors.New("down")}
	err := NewRedisNotifier(pub, "").Notify(context.Background(), amendment, []amendments.Alert{
		{Kind: amendments.AlertLate, Severity: amendments.SeverityHigh},
	})
	assert.Error(t, err)
}
