package likes

import (
	"context"
	"errors"
	"testing"

	"github.com/ivankudzin/matchcore/internal/domain/model"
	"github.com/ivankudzin/matchcore/internal/repo/memory"
	"github.com/ivankudzin/matchcore/internal/repo/repoerr"
)

func TestListToAndFrom(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	store.SeedLike(model.Like{ID: "like_1", FromProfile: "p1", ToProfile: "p2"})
	store.SeedLike(model.Like{ID: "like_2", FromProfile: "p3", ToProfile: "p2"})
	store.SeedLike(model.Like{ID: "like_3", FromProfile: "p2", ToProfile: "p4"})

	svc := NewService(Dependencies{LikeStore: store.Likes()})

	incoming, err := svc.ListTo(ctx, " p2 ", 0)
	if err != nil {
		t.Fatalf("unexpected list to error: %v", err)
	}
	if len(incoming) != 2 {
		t.Fatalf("unexpected incoming likes count: got %d want %d", len(incoming), 2)
	}

	outgoing, err := svc.ListFrom(ctx, "p2", 10)
	if err != nil {
		t.Fatalf("unexpected list from error: %v", err)
	}
	if len(outgoing) != 1 || outgoing[0].ToProfile != "p4" {
		t.Fatalf("unexpected outgoing likes: %+v", outgoing)
	}
}

func TestListRejectsEmptyProfile(t *testing.T) {
	svc := NewService(Dependencies{LikeStore: memory.NewStore().Likes()})

	if _, err := svc.ListTo(context.Background(), "  ", 10); !errors.Is(err, ErrValidation) {
		t.Fatalf("unexpected error: got %v want %v", err, ErrValidation)
	}
	if _, err := svc.ListFrom(context.Background(), "", 10); !errors.Is(err, ErrValidation) {
		t.Fatalf("unexpected error: got %v want %v", err, ErrValidation)
	}
}

func TestRetractIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	store.SeedLike(model.Like{FromProfile: "p1", ToProfile: "p2"})
	svc := NewService(Dependencies{LikeStore: store.Likes()})

	deleted, err := svc.Retract(ctx, "p1", "p2")
	if err != nil {
		t.Fatalf("unexpected retract error: %v", err)
	}
	if !deleted {
		t.Fatalf("expected first retract to delete the like")
	}

	deleted, err = svc.Retract(ctx, "p1", "p2")
	if err != nil {
		t.Fatalf("unexpected second retract error: %v", err)
	}
	if deleted {
		t.Fatalf("expected second retract to be a no-op")
	}

	if _, err := svc.Retract(ctx, "", "p2"); !errors.Is(err, ErrValidation) {
		t.Fatalf("unexpected error: got %v want %v", err, ErrValidation)
	}
}

func TestRetractWrapsStoreErrors(t *testing.T) {
	store := memory.NewStore()
	store.SetUnavailable(true)
	svc := NewService(Dependencies{LikeStore: store.Likes()})

	_, err := svc.Retract(context.Background(), "p1", "p2")
	if !errors.Is(err, repoerr.ErrUnavailable) {
		t.Fatalf("unexpected error: got %v want %v", err, repoerr.ErrUnavailable)
	}
}
