package policy

import (
	"errors"
	"testing"
	"time"

	"github.com/yungbote/rewardcore-backend/internal/domain/events"
	"github.com/yungbote/rewardcore-backend/internal/encoding"
	"github.com/yungbote/rewardcore-backend/internal/sequence"
)

func trainingPopulation(n int) []TrainSample {
	gamers := encoding.DomainIndex(events.DomainSkillGames)
	social := encoding.DomainIndex(events.DomainCommunityEngagement)

	out := make([]TrainSample, 0, n)
	for i := 0; i < n; i++ {
		st := sequence.NewState()
		if i%2 == 0 {
			st.CapMean[encoding.DimAnalyticalThinking] = 0.8
			st.DomainAffinity[gamers] = 0.9
			out = append(out, TrainSample{State: st, Bucket: "old_gamers"})
		} else {
			st.CapMean[encoding.DimCollaboration] = 0.8
			st.DomainAffinity[social] = 0.9
			out = append(out, TrainSample{State: st, Bucket: "old_social"})
		}
	}
	return out
}

func TestTrain_RejectsSmallSample(t *testing.T) {
	cfg := TrainConfig{MaxArchetypes: 4, MinSample: 50}
	_, err := Train(1, trainingPopulation(10), cfg, time.Now())
	if !errors.Is(err, ErrSampleTooSmall) {
		t.Fatalf("expected ErrSampleTooSmall, got %v", err)
	}
}

func TestTrain_SeparatesPopulations(t *testing.T) {
	cfg := TrainConfig{MaxArchetypes: 2, MinSample: 10}
	res, err := Train(4, trainingPopulation(60), cfg, time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	snap := res.Snapshot
	if snap.Version != 4 || snap.SampleSize != 60 {
		t.Fatalf("snapshot header wrong: %+v", snap)
	}
	if len(snap.Archetypes) != 2 {
		t.Fatalf("expected 2 archetypes, got %d", len(snap.Archetypes))
	}

	var totalWeight float64
	seenGamer, seenSocial := false, false
	gamers := encoding.DomainIndex(events.DomainSkillGames)
	social := encoding.DomainIndex(events.DomainCommunityEngagement)
	for _, a := range snap.Archetypes {
		totalWeight += a.Weight
		if len(a.SeedMeans) != encoding.NumDimensions || len(a.SeedAffinity) != encoding.NumDomains {
			t.Fatalf("seed lanes wrong width: %+v", a)
		}
		if a.SeedAffinity[gamers] > 0.5 {
			seenGamer = true
			if res.InheritFrom[a.Bucket] != "old_gamers" {
				t.Fatalf("gamer cluster should inherit old_gamers, got %q", res.InheritFrom[a.Bucket])
			}
		}
		if a.SeedAffinity[social] > 0.5 {
			seenSocial = true
		}
	}
	if !seenGamer || !seenSocial {
		t.Fatalf("clusters did not separate the two populations: %+v", snap.Archetypes)
	}
	if totalWeight < 0.99 || totalWeight > 1.01 {
		t.Fatalf("weights must sum to 1, got %v", totalWeight)
	}
}

func TestTrain_DeterministicOverSamePopulation(t *testing.T) {
	cfg := TrainConfig{MaxArchetypes: 3, MinSample: 10}
	at := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	a, err := Train(7, trainingPopulation(40), cfg, at)
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	b, err := Train(7, trainingPopulation(40), cfg, at)
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	if len(a.Snapshot.Archetypes) != len(b.Snapshot.Archetypes) {
		t.Fatalf("cluster count must be stable: %d vs %d", len(a.Snapshot.Archetypes), len(b.Snapshot.Archetypes))
	}
	for i := range a.Snapshot.Archetypes {
		x, y := a.Snapshot.Archetypes[i], b.Snapshot.Archetypes[i]
		if x.Bucket != y.Bucket || x.Weight != y.Weight {
			t.Fatalf("archetype %d differs across runs: %+v vs %+v", i, x, y)
		}
		for j := range x.SeedMeans {
			if x.SeedMeans[j] != y.SeedMeans[j] {
				t.Fatalf("seed means differ at %d/%d", i, j)
			}
		}
	}
}

func TestTrain_LabelsFlatAffinityGeneralist(t *testing.T) {
	if got := trainLabel(make([]float64, encoding.NumDomains)); got != "generalist" {
		t.Fatalf("flat affinity should label generalist, got %q", got)
	}
	aff := make([]float64, encoding.NumDomains)
	idx := encoding.DomainIndex(events.DomainCreativeChallenges)
	aff[idx] = 0.7
	if got := trainLabel(aff); got != events.DomainCreativeChallenges {
		t.Fatalf("expected %q, got %q", events.DomainCreativeChallenges, got)
	}
}
