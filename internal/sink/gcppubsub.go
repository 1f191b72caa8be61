package sink

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"

	"github.com/txpipe/chainstream/internal/model"
)

// GCPPubSub delivers each event as a Pub/Sub message, the second cloud
// queue/notification sink family.
type GCPPubSub struct {
	Topic *pubsub.Topic
}

func (g *GCPPubSub) Deliver(ctx context.Context, event model.ChainEvent) error {
	raw, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("sink/gcppubsub: marshal event: %w", err)
	}
	result := g.Topic.Publish(ctx, &pubsub.Message{Data: raw})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("sink/gcppubsub: publish: %w", err)
	}
	return nil
}

func (g *GCPPubSub) Close() error {
	g.Topic.Stop()
	return nil
}
