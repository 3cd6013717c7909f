package synthesis

import (
	"encoding/json"
	"math"

	"gorm.io/datatypes"

	"github.com/yungbote/rewardcore-backend/internal/constraint"
)

// Fairness metrics recorded on audit rows.
const (
	MetricEqualOpportunity  = "equal_opportunity"
	MetricStatisticalParity = "statistical_parity"
)

type fairnessConfig struct {
	MaxDisparity        float64
	QualifiedCapability float64
	MinQualified        int
}

type fairnessReport struct {
	Metric      string
	Disparity   float64
	CohortRates map[string]float64
	Passed      bool
}

// auditRule measures how evenly a rule admits users across archetype
// cohorts. Preferred metric is equal opportunity: the admit rate among
// qualified users only, so a rule is not penalized for capability gaps the
// rule does not cause. When any cohort lacks enough qualified members the
// audit falls back to statistical parity over whole cohorts, applied to
// every cohort so rates stay comparable.
func auditRule(rule *constraint.Rule, samples []Sample, cfg fairnessConfig) fairnessReport {
	cohorts := map[string][]int{}
	for i, s := range samples {
		cohorts[s.Bucket] = append(cohorts[s.Bucket], i)
	}

	metric := MetricEqualOpportunity
	for _, members := range cohorts {
		qualified := 0
		for _, m := range members {
			if samples[m].State.AvgCapability() >= cfg.QualifiedCapability {
				qualified++
			}
		}
		if qualified < cfg.MinQualified {
			metric = MetricStatisticalParity
			break
		}
	}

	rates := make(map[string]float64, len(cohorts))
	for bucket, members := range cohorts {
		admitted, counted := 0, 0
		for _, m := range members {
			if metric == MetricEqualOpportunity &&
				samples[m].State.AvgCapability() < cfg.QualifiedCapability {
				continue
			}
			counted++
			if rule.Eval(samples[m].State) {
				admitted++
			}
		}
		if counted == 0 {
			rates[bucket] = 0
			continue
		}
		rates[bucket] = float64(admitted) / float64(counted)
	}

	var disparity float64
	buckets := make([]string, 0, len(rates))
	for b := range rates {
		buckets = append(buckets, b)
	}
	for i := 0; i < len(buckets); i++ {
		for j := i + 1; j < len(buckets); j++ {
			if d := math.Abs(rates[buckets[i]] - rates[buckets[j]]); d > disparity {
				disparity = d
			}
		}
	}

	return fairnessReport{
		Metric:      metric,
		Disparity:   disparity,
		CohortRates: rates,
		Passed:      disparity <= cfg.MaxDisparity,
	}
}

func (r fairnessReport) ratesJSON() datatypes.JSON {
	raw, err := json.Marshal(r.CohortRates)
	if err != nil {
		return datatypes.JSON([]byte("{}"))
	}
	return datatypes.JSON(raw)
}
