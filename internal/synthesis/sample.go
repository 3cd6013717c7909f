package synthesis

import (
	"github.com/google/uuid"

	types "github.com/yungbote/rewardcore-backend/internal/domain"
	"github.com/yungbote/rewardcore-backend/internal/encoding"
	"github.com/yungbote/rewardcore-backend/internal/platform/logger"
	"github.com/yungbote/rewardcore-backend/internal/policy"
	"github.com/yungbote/rewardcore-backend/internal/sequence"
)

// Feature layout of the clustering space: capability means, then engagement
// lanes, then domain affinity. Frozen alongside the rule feature grammar so
// cluster signatures stay comparable across runs.
const (
	featCapOff        = 0
	featEngagementOff = encoding.NumDimensions
	featDomainOff     = featEngagementOff + encoding.NumEngagementLanes
	featureCount      = featDomainOff + encoding.NumDomains
)

// Sample is one warm user's view for a synthesis pass. The user id never
// leaves the process; persisted artifacts carry only aggregates.
type Sample struct {
	UserID uuid.UUID
	Bucket string
	State  *sequence.State
	Window []sequence.OutcomeEntry
}

// featureVector flattens the clusterable slice of a state.
func featureVector(s *sequence.State) []float64 {
	v := make([]float64, featureCount)
	copy(v[featCapOff:], s.CapMean)
	copy(v[featEngagementOff:], s.Engagement)
	copy(v[featDomainOff:], s.DomainAffinity)
	return v
}

// featureName maps a clustering-space index to its rule feature name.
func featureName(i int) string {
	switch {
	case i >= featCapOff && i < featEngagementOff:
		return "cap_mean:" + encoding.DimensionName(i-featCapOff)
	case i >= featEngagementOff && i < featDomainOff:
		return "engagement:" + encoding.EngagementLaneName(i-featEngagementOff)
	case i >= featDomainOff && i < featureCount:
		return "domain_affinity:" + encoding.DomainName(i-featDomainOff)
	default:
		return ""
	}
}

// decodeSamples converts state rows into samples, dropping rows whose vector
// or window fails to decode. A handful of bad rows must not sink a run.
func decodeSamples(rows []*types.UserState, log *logger.Logger) []Sample {
	out := make([]Sample, 0, len(rows))
	for _, row := range rows {
		if row == nil {
			continue
		}
		st, err := sequence.Unmarshal(row.Vector)
		if err != nil {
			if log != nil {
				log.Warn("synthesis: skipping undecodable state", "user_id", row.UserID.String(), "error", err)
			}
			continue
		}
		window, err := sequence.UnmarshalWindow(row.OutcomeWindow)
		if err != nil {
			window = nil
		}
		bucket := row.ArchetypeBucket
		if bucket == "" {
			bucket = policy.NeutralBucket
		}
		out = append(out, Sample{
			UserID: row.UserID,
			Bucket: bucket,
			State:  st,
			Window: window,
		})
	}
	return out
}
