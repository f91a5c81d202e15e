package memory

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/assistly/billing/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPubSub_PublishBeforeSubscribe(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	ps := NewPubSub(logger.NewNoopLogger())
	defer ps.Close()

	msg := message.NewMessage(watermill.NewUUID(), []byte(`{"ok":true}`))
	require.NoError(t, ps.Publish(ctx, "billing.coupon.redeemed", msg))

	ch, err := ps.Subscribe(ctx, "billing.coupon.redeemed")
	require.NoError(t, err)

	select {
	case got := <-ch:
		assert.Equal(t, msg.UUID, got.UUID)
		assert.JSONEq(t, `{"ok":true}`, string(got.Payload))
		got.Ack()
	case <-ctx.Done():
		t.Fatal("message was not delivered")
	}
}
