package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/foodorder/internal/domain"
	"github.com/vladislavdragonenkov/foodorder/internal/storage/memory"
)

func TestTimelineRepository_ListIsChronological(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewTimelineRepository()
	orderID := domain.OrderID(uuid.New())
	base := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)

	events := []domain.TimelineEvent{
		{OrderID: orderID, Type: "order.paid", Status: domain.OrderStatusPaid, Occurred: base.Add(time.Minute)},
		{OrderID: orderID, Type: "order.created", Status: domain.OrderStatusPending, Occurred: base},
		{OrderID: domain.OrderID(uuid.New()), Type: "order.created", Occurred: base},
	}
	for _, e := range events {
		if err := repo.Append(ctx, e); err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}

	got, err := repo.List(ctx, orderID)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %d", len(got))
	}
	if got[0].Type != "order.created" || got[1].Type != "order.paid" {
		t.Fatalf("unexpected order: %s, %s", got[0].Type, got[1].Type)
	}
}

func TestTimelineRepository_SameInstantKeepsArrivalOrder(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewTimelineRepository()
	orderID := domain.OrderID(uuid.New())
	at := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)

	for _, typ := range []string{"order.paid", "order.approved"} {
		if err := repo.Append(ctx, domain.TimelineEvent{OrderID: orderID, Type: typ, Occurred: at}); err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}

	got, err := repo.List(ctx, orderID)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(got) != 2 || got[0].Type != "order.paid" || got[1].Type != "order.approved" {
		t.Fatalf("unexpected history %+v", got)
	}

	got[0].Type = "mutated"
	again, _ := repo.List(ctx, orderID)
	if again[0].Type != "order.paid" {
		t.Fatal("List must return a copy")
	}

	empty, err := repo.List(ctx, domain.OrderID(uuid.New()))
	if err != nil || empty == nil || len(empty) != 0 {
		t.Fatalf("unknown order should give an empty history, got %v, %v", empty, err)
	}
}
