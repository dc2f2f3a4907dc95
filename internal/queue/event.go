// Package queue defines message payloads exchanged over the message broker.
package queue

import (
	"context"
	"log"
	"time"
)

// ActivityQueueName is the durable queue activity events are published to.
const ActivityQueueName = "ticket.activity"

// Activity kinds reported to the points service.
const (
	ActivityMint     = "mint"
	ActivityScan     = "scan"
	ActivityPurchase = "purchase"
)

// ActivityEvent is published after a successful mint, scan or purchase. It
// carries enough for the points/leaderboard service to credit the wallet
// without reading the ledger.
type ActivityEvent struct {
	Kind       string `json:"kind"`
	Wallet     string `json:"wallet"`
	Event      string `json:"event"`
	Ticket     string `json:"ticket"`
	TxID       string `json:"tx_id"`
	Amount     uint64 `json:"amount,omitempty"`
	OccurredAt string `json:"occurred_at"`
}

// Notifier delivers activity events. Delivery is best effort.
type Notifier interface {
	Publish(ctx context.Context, ev ActivityEvent) error
}

// Discard drops every event.
type Discard struct{}

func (Discard) Publish(context.Context, ActivityEvent) error { return nil }

// NotifyAsync publishes ev on its own goroutine with a short timeout. The
// caller never waits and failures are only logged.
func NotifyAsync(n Notifier, ev ActivityEvent) {
	if n == nil {
		return
	}
	if ev.OccurredAt == "" {
		ev.OccurredAt = time.Now().UTC().Format(time.RFC3339)
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := n.Publish(ctx, ev); err != nil {
			log.Printf("activity: publish %s for %s failed: %v", ev.Kind, ev.Wallet, err)
		}
	}()
}
