package synthesis

import (
	"github.com/yungbote/rewardcore-backend/internal/constraint"
	types "github.com/yungbote/rewardcore-backend/internal/domain"
	"github.com/yungbote/rewardcore-backend/internal/platform/logger"
)

// coverageRules extracts the non-empty eligibility rules from the selectable
// catalog. Always-eligible specs say nothing about who a reward targets, so
// they do not count toward coverage; novelty asks whether any targeted rule
// already reaches a cluster's members.
func coverageRules(specs []*types.ActionSpec, log *logger.Logger) []*constraint.Rule {
	rules := make([]*constraint.Rule, 0, len(specs))
	for _, spec := range specs {
		if spec == nil {
			continue
		}
		r, err := constraint.ParseRule(spec.Rule)
		if err != nil {
			if log != nil {
				log.Warn("synthesis: unparseable catalog rule skipped", "action_key", spec.Key, "error", err)
			}
			continue
		}
		if r.Empty() {
			continue
		}
		rules = append(rules, r)
	}
	return rules
}

// clusterCoverage is the share of members matched by at least one existing
// targeted rule.
func clusterCoverage(samples []Sample, members []int, rules []*constraint.Rule) float64 {
	if len(members) == 0 {
		return 0
	}
	if len(rules) == 0 {
		return 0
	}
	covered := 0
	for _, m := range members {
		for _, r := range rules {
			if r.Eval(samples[m].State) {
				covered++
				break
			}
		}
	}
	return float64(covered) / float64(len(members))
}
