package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	types "github.com/yungbote/rewardcore-backend/internal/domain"
	"github.com/yungbote/rewardcore-backend/internal/platform/apierr"
	"github.com/yungbote/rewardcore-backend/internal/policy"
)

func TestDropCandidate(t *testing.T) {
	idA := uuid.MustParse("0d1c2b3a-0000-4000-8000-000000000001")
	idB := uuid.MustParse("0d1c2b3a-0000-4000-8000-000000000002")
	candidates := []policy.Candidate{
		{Spec: &types.ActionSpec{ID: idA, Key: "points_small"}},
		{Spec: &types.ActionSpec{ID: idB, Key: "streak_keeper"}},
		{Spec: nil},
	}

	out := dropCandidate(candidates, idA)
	if len(out) != 2 {
		t.Fatalf("expected 2 survivors, got %d", len(out))
	}
	for _, c := range out {
		if c.Spec != nil && c.Spec.ID == idA {
			t.Fatalf("vetoed candidate %s survived the drop", idA)
		}
	}

	// Dropping an id that is not present keeps the slice intact.
	out = dropCandidate(candidates, uuid.MustParse("0d1c2b3a-0000-4000-8000-00000000000f"))
	if len(out) != len(candidates) {
		t.Fatalf("unrelated drop changed length: got %d, want %d", len(out), len(candidates))
	}
}

func TestOverBudget(t *testing.T) {
	if err := overBudget(context.Background()); err != nil {
		t.Fatalf("live context reported over budget: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()

	err := overBudget(ctx)
	if err == nil {
		t.Fatal("expired context should report over budget")
	}
	if !errors.Is(err, apierr.ErrBudgetExceeded) {
		t.Fatalf("expected ErrBudgetExceeded in chain, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected DeadlineExceeded in chain, got %v", err)
	}
}

func TestBucketOrNeutral(t *testing.T) {
	if got := bucketOrNeutral(""); got != policy.NeutralBucket {
		t.Fatalf("empty bucket: got %q, want %q", got, policy.NeutralBucket)
	}
	if got := bucketOrNeutral("arch_v3_2"); got != "arch_v3_2" {
		t.Fatalf("assigned bucket rewritten: got %q", got)
	}
}
