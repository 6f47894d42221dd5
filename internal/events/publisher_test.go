package events

import (
	"context"
	"testing"

	"github.com/apexlabs/nft-market/internal/domain/market"
)

func TestMemoryPublisher(t *testing.T) {
	pub := NewMemoryPublisher()

	if _, ok := pub.Last(); ok {
		t.Fatal("empty publisher must report no last event")
	}

	if err := pub.Publish(context.Background(), market.Event{ID: "1", Kind: market.EventItemSold}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := pub.Publish(context.Background(), market.Event{ID: "2", Kind: market.EventBidAdded}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	all := pub.Events()
	if len(all) != 2 {
		t.Fatalf("expected 2 events, got %d", len(all))
	}
	last, ok := pub.Last()
	if !ok || last.ID != "2" {
		t.Fatalf("unexpected last event: %+v %v", last, ok)
	}

	// The returned slice is a copy.
	all[0].ID = "mutated"
	if again := pub.Events(); again[0].ID != "1" {
		t.Fatal("Events must return a detached copy")
	}
}
