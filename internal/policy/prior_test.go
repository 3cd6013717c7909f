package policy

import (
	"testing"
	"time"

	"github.com/yungbote/rewardcore-backend/internal/domain/events"
	"github.com/yungbote/rewardcore-backend/internal/encoding"
	"github.com/yungbote/rewardcore-backend/internal/sequence"
)

func snapshotWithTwoArchetypes() *Snapshot {
	builders := make([]float64, encoding.NumDimensions)
	buildersAff := make([]float64, encoding.NumDomains)
	builders[encoding.DimAnalyticalThinking] = 0.7
	buildersAff[encoding.DomainIndex(events.DomainSkillGames)] = 0.8

	social := make([]float64, encoding.NumDimensions)
	socialAff := make([]float64, encoding.NumDomains)
	social[encoding.DimCollaboration] = 0.7
	socialAff[encoding.DomainIndex(events.DomainCommunityEngagement)] = 0.8

	return &Snapshot{
		Version:    3,
		TrainedAt:  time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		SampleSize: 1200,
		Archetypes: []Archetype{
			{Bucket: "builders", Weight: 0.5, SeedMeans: builders, SeedAffinity: buildersAff, SeedValues: map[string]float64{"daily-points": 0.6}},
			{Bucket: "social", Weight: 0.5, SeedMeans: social, SeedAffinity: socialAff},
		},
	}
}

func TestSeedFor_NeutralWithoutSnapshot(t *testing.T) {
	p := NewPrior()
	seed := p.SeedFor(SignupContext{DeclaredInterests: []string{events.DomainSkillGames}})
	if seed.Bucket != NeutralBucket || seed.Version != 0 {
		t.Fatalf("expected neutral bootstrap, got %+v", seed)
	}
	neutral := sequence.NewState()
	for i, m := range seed.State.CapMean {
		if m != neutral.CapMean[i] {
			t.Fatalf("neutral seed must match the prior state")
		}
	}
}

func TestSeedFor_MatchesDeclaredInterests(t *testing.T) {
	p := NewPrior()
	p.Swap(snapshotWithTwoArchetypes())

	seed := p.SeedFor(SignupContext{DeclaredInterests: []string{events.DomainCommunityEngagement}})
	if seed.Bucket != "social" || seed.Version != 3 {
		t.Fatalf("expected social archetype v3, got %+v", seed)
	}

	seed = p.SeedFor(SignupContext{DeclaredInterests: []string{events.DomainSkillGames}})
	if seed.Bucket != "builders" {
		t.Fatalf("expected builders, got %s", seed.Bucket)
	}
	if seed.Values["daily-points"] != 0.6 {
		t.Fatalf("seed values must carry over, got %v", seed.Values)
	}

	// Seeded mean is pulled halfway to the archetype, bounded off neutral.
	dim := encoding.DimAnalyticalThinking
	neutral := sequence.NewState().CapMean[dim]
	got := seed.State.CapMean[dim]
	if got <= neutral || got >= 0.7 {
		t.Fatalf("seeded mean should sit between neutral %v and archetype 0.7, got %v", neutral, got)
	}
	// Seeding grants no observation confidence.
	if seed.State.CapConf[dim] != sequence.NewState().CapConf[dim] {
		t.Fatalf("seeding must not fabricate evidence")
	}
	if seed.State.CapPeak[dim] < got {
		t.Fatalf("peak must cover the seeded mean")
	}
}

func TestBucketFor_NearestArchetype(t *testing.T) {
	p := NewPrior()

	st := sequence.NewState()
	if bucket, version := p.BucketFor(st); bucket != NeutralBucket || version != 0 {
		t.Fatalf("no snapshot must stay neutral, got %s v%d", bucket, version)
	}

	p.Swap(snapshotWithTwoArchetypes())
	st.CapMean[encoding.DimCollaboration] = 0.75
	st.DomainAffinity[encoding.DomainIndex(events.DomainCommunityEngagement)] = 0.7
	bucket, version := p.BucketFor(st)
	if bucket != "social" || version != 3 {
		t.Fatalf("expected social v3, got %s v%d", bucket, version)
	}
}

func TestSnapshot_PayloadRoundTrip(t *testing.T) {
	snap := snapshotWithTwoArchetypes()
	raw, err := snap.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	back, err := ParseSnapshot(snap.Version, raw)
	if err != nil {
		t.Fatalf("ParseSnapshot: %v", err)
	}
	if len(back.Archetypes) != 2 || back.Archetypes[0].Bucket != "builders" {
		t.Fatalf("snapshot did not round-trip: %+v", back)
	}
	if back.SampleSize != 1200 {
		t.Fatalf("sample size lost: %d", back.SampleSize)
	}
}
