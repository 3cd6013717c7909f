package policy

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"gorm.io/datatypes"

	"github.com/yungbote/rewardcore-backend/internal/encoding"
	"github.com/yungbote/rewardcore-backend/internal/platform/envutil"
	"github.com/yungbote/rewardcore-backend/internal/sequence"
)

// NeutralBucket is the archetype bucket used when no snapshot applies.
const NeutralBucket = "neutral"

// SignupContext is the only input the cold-start prior may condition on.
// No behavioral data exists yet by definition.
type SignupContext struct {
	AgeBand           string   `json:"age_band,omitempty"`
	Region            string   `json:"region,omitempty"`
	Referral          string   `json:"referral,omitempty"`
	DeclaredInterests []string `json:"declared_interests,omitempty"`
}

// Archetype is one population cluster in a snapshot.
type Archetype struct {
	Bucket string `json:"bucket"`
	Label  string `json:"label,omitempty"`
	// Share of the training population in this cluster.
	Weight float64 `json:"weight"`
	// Capability mean and domain affinity seeds in frozen lane order.
	SeedMeans    []float64 `json:"seed_means"`
	SeedAffinity []float64 `json:"seed_affinity"`
	// Initial arm values per action key.
	SeedValues map[string]float64 `json:"seed_values,omitempty"`
}

// Snapshot is one immutable published archetype set.
type Snapshot struct {
	Version    int         `json:"version"`
	TrainedAt  time.Time   `json:"trained_at"`
	SampleSize int         `json:"sample_size"`
	Archetypes []Archetype `json:"archetypes"`
}

// ParseSnapshot decodes an archetype_snapshot payload.
func ParseSnapshot(version int, raw datatypes.JSON) (*Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("policy: decode snapshot: %w", err)
	}
	s.Version = version
	return &s, nil
}

// Marshal serializes the snapshot payload.
func (s *Snapshot) Marshal() (datatypes.JSON, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

// Prior interpolates new-user state from population archetypes. The live
// snapshot sits behind an atomic reference: readers never block, updates
// swap whole versions.
type Prior struct {
	snap atomic.Value // *Snapshot
	// How far a seed may pull a state off the neutral prior.
	Shrink float64
	// Observation count seeded arms start with.
	SeedCount int
}

func NewPrior() *Prior {
	return &Prior{
		Shrink:    envutil.Float("PRIOR_SHRINK", 0.5, 0, 1),
		SeedCount: envutil.Int("PRIOR_SEED_COUNT", 3),
	}
}

// Swap publishes a new snapshot version.
func (p *Prior) Swap(s *Snapshot) {
	if s != nil {
		p.snap.Store(s)
	}
}

// Current returns the live snapshot, nil before the first publish.
func (p *Prior) Current() *Snapshot {
	s, _ := p.snap.Load().(*Snapshot)
	return s
}

// Seed is the prior's output for one signup.
type Seed struct {
	State   *sequence.State
	Bucket  string
	Version int
	// Arm value seeds per action key; persisted with seed-only semantics
	// so they never clobber observed arms.
	Values map[string]float64
	Count  int
}

// SeedFor builds the initial state for a signup context. Without a
// snapshot, or when nothing matches, the seed is the neutral bootstrap.
func (p *Prior) SeedFor(ctx SignupContext) Seed {
	neutral := Seed{State: sequence.NewState(), Bucket: NeutralBucket, Count: p.SeedCount}
	snap := p.Current()
	if snap == nil || len(snap.Archetypes) == 0 {
		return neutral
	}

	best := p.match(snap, ctx)
	if best == nil {
		return neutral
	}

	st := sequence.NewState()
	for i := 0; i < encoding.NumDimensions && i < len(best.SeedMeans); i++ {
		st.CapMean[i] += p.Shrink * (best.SeedMeans[i] - st.CapMean[i])
		if st.CapMean[i] > st.CapPeak[i] {
			st.CapPeak[i] = st.CapMean[i]
		}
	}
	for i := 0; i < encoding.NumDomains && i < len(best.SeedAffinity); i++ {
		st.DomainAffinity[i] = p.Shrink * best.SeedAffinity[i]
	}

	return Seed{
		State:   st,
		Bucket:  best.Bucket,
		Version: snap.Version,
		Values:  best.SeedValues,
		Count:   p.SeedCount,
	}
}

// match scores archetypes by declared-interest affinity with population
// weight as a weak tie-breaking prior.
func (p *Prior) match(snap *Snapshot, ctx SignupContext) *Archetype {
	var best *Archetype
	bestScore := 0.0
	for i := range snap.Archetypes {
		a := &snap.Archetypes[i]
		score := 0.1 * a.Weight
		for _, interest := range ctx.DeclaredInterests {
			if d := encoding.DomainIndex(interest); d >= 0 && d < len(a.SeedAffinity) {
				score += a.SeedAffinity[d]
			}
		}
		if best == nil || score > bestScore {
			best, bestScore = a, score
		}
	}
	return best
}

// BucketFor reassigns an existing state to the nearest archetype of the
// live snapshot, used when a new snapshot version lands.
func (p *Prior) BucketFor(st *sequence.State) (string, int) {
	snap := p.Current()
	if snap == nil || len(snap.Archetypes) == 0 || st == nil {
		return NeutralBucket, 0
	}
	best, bestDist := NeutralBucket, 0.0
	first := true
	for _, a := range snap.Archetypes {
		d := seedDistance(st, a)
		if first || d < bestDist {
			best, bestDist = a.Bucket, d
			first = false
		}
	}
	return best, snap.Version
}

func seedDistance(st *sequence.State, a Archetype) float64 {
	var d float64
	for i := 0; i < encoding.NumDimensions && i < len(a.SeedMeans); i++ {
		diff := st.CapMean[i] - a.SeedMeans[i]
		d += diff * diff
	}
	for i := 0; i < encoding.NumDomains && i < len(a.SeedAffinity); i++ {
		diff := st.DomainAffinity[i] - a.SeedAffinity[i]
		d += diff * diff
	}
	return d
}
