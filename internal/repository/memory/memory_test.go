package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/scripty-dev/starter-api/internal/domain"
	"github.com/scripty-dev/starter-api/internal/repository"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func TestItemLifecycle(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, time.March, 1, 9, 0, 0, 0, time.UTC)}
	store := New(WithClock(clock.now))
	ctx := context.Background()

	item := &domain.Item{ID: "a", Name: "Pen", Description: "Blue pen", Price: 1.5, Quantity: 10, Category: domain.CategoryOther}
	if err := store.CreateItem(ctx, item); err != nil {
		t.Fatalf("create: %v", err)
	}
	if item.CreatedAt.IsZero() || !item.CreatedAt.Equal(item.UpdatedAt) {
		t.Fatalf("expected timestamps stamped, got %+v", item)
	}

	got, err := store.GetItemByID(ctx, "a")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if diff := cmp.Diff(*item, *got); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}

	got.Quantity = 3
	if err := store.UpdateItem(ctx, got); err != nil {
		t.Fatalf("update: %v", err)
	}
	if !got.UpdatedAt.After(got.CreatedAt) {
		t.Fatalf("expected UpdatedAt to advance, got %+v", got)
	}
	if !got.CreatedAt.Equal(item.CreatedAt) {
		t.Fatalf("CreatedAt must not change on update")
	}

	if err := store.DeleteItem(ctx, "a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.GetItemByID(ctx, "a"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := store.DeleteItem(ctx, "a"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
	if err := store.UpdateItem(ctx, &domain.Item{ID: "a"}); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on update, got %v", err)
	}
}

func TestListItemsNewestFirst(t *testing.T) {
	fixed := time.Date(2025, time.March, 1, 9, 0, 0, 0, time.UTC)
	store := New(WithClock(func() time.Time { return fixed }))
	ctx := context.Background()
	for _, id := range []string{"first", "second", "third"} {
		if err := store.CreateItem(ctx, &domain.Item{ID: id}); err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
	}
	items, err := store.ListItems(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var ids []string
	for _, it := range items {
		ids = append(ids, it.ID)
	}
	if diff := cmp.Diff([]string{"third", "second", "first"}, ids); diff != "" {
		t.Fatalf("unexpected order (-want +got):\n%s", diff)
	}
}

func TestCreateUserRejectsDuplicateEmail(t *testing.T) {
	store := New()
	ctx := context.Background()
	if err := store.CreateUser(ctx, &domain.User{ID: "u1", Email: "a@example.com"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.CreateUser(ctx, &domain.User{ID: "u2", Email: "a@example.com"}); !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	user, err := store.GetUserByEmail(ctx, "a@example.com")
	if err != nil || user.ID != "u1" {
		t.Fatalf("unexpected lookup %+v, %v", user, err)
	}
	if _, err := store.GetUserByID(ctx, "missing"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCancelledContext(t *testing.T) {
	store := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := store.ListItems(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
