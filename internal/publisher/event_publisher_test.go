package publisher

import (
	"context"
	"testing"
	"time"

	"github.com/assistly/billing/internal/config"
	"github.com/assistly/billing/internal/logger"
	"github.com/assistly/billing/internal/pubsub/memory"
	"github.com/assistly/billing/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventPublisher_Publish(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	cfg := config.GetDefaultConfig()
	log := logger.NewNoopLogger()
	ps := memory.NewPubSub(log)
	defer ps.Close()

	pub := NewEventPublisher(cfg, ps, log)

	event := NewEvent(types.EventCouponRedeemed, "user_1", map[string]any{"code": "SUMMER20"})
	require.NoError(t, pub.Publish(ctx, event))

	ch, err := ps.Subscribe(ctx, "billing.coupon.redeemed")
	require.NoError(t, err)

	select {
	case msg := <-ch:
		assert.Equal(t, event.ID, msg.UUID)
		assert.Equal(t, "coupon.redeemed", msg.Metadata.Get("event_type"))
		assert.Equal(t, "user_1", msg.Metadata.Get("partition_key"))

		var got Event
		require.NoError(t, json.Unmarshal(msg.Payload, &got))
		assert.Equal(t, types.EventCouponRedeemed, got.Type)
		assert.Equal(t, map[string]any{"code": "SUMMER20"}, got.Payload)
		msg.Ack()
	case <-ctx.Done():
		t.Fatal("event was not delivered")
	}
}

func TestEventType_Topic(t *testing.T) {
	assert.Equal(t, "fraud.signal_detected", types.EventFraudSignalDetected.Topic(""))
	assert.Equal(t, "billing.subscription.tier_changed", types.EventSubscriptionTierChanged.Topic("billing"))
}

func TestNewPubSub_DefaultsToMemory(t *testing.T) {
	cfg := config.GetDefaultConfig()
	ps, err := NewPubSub(cfg, logger.NewNoopLogger())
	require.NoError(t, err)
	defer ps.Close()
	_, ok := ps.(*memory.PubSub)
	assert.True(t, ok)
}
