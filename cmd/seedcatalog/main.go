package main

import (
	"context"
	_ "embed"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
	"gorm.io/datatypes"

	"github.com/yungbote/rewardcore-backend/internal/app"
	"github.com/yungbote/rewardcore-backend/internal/constraint"
	types "github.com/yungbote/rewardcore-backend/internal/domain"
	"github.com/yungbote/rewardcore-backend/internal/platform/dbctx"
	"github.com/yungbote/rewardcore-backend/internal/sequence"
)

//go:embed catalog.yaml
var defaultCatalogYAML []byte

type seedCatalog struct {
	Actions []seedAction `yaml:"actions"`
}

type seedAction struct {
	Key             string    `yaml:"key"`
	Title           string    `yaml:"title"`
	RewardType      string    `yaml:"reward_type"`
	Intensity       string    `yaml:"intensity"`
	Presentations   []string  `yaml:"presentations"`
	CooldownSeconds int       `yaml:"cooldown_seconds"`
	Rule            *seedRule `yaml:"rule"`
}

type seedRule struct {
	All []seedTerm `yaml:"all"`
	Any []seedTerm `yaml:"any"`
}

type seedTerm struct {
	Feature string  `yaml:"feature"`
	Op      string  `yaml:"op"`
	Value   float64 `yaml:"value"`
}

var seedRewardTypes = map[string]bool{
	types.RewardTypePoints:            true,
	types.RewardTypeStreakBonus:       true,
	types.RewardTypeSkillBadge:        true,
	types.RewardTypeChoiceOpportunity: true,
	types.RewardTypeSocialRecognition: true,
	types.RewardTypeOpportunityUnlock: true,
}

var seedIntensities = map[string]bool{
	types.IntensityLow:    true,
	types.IntensityMedium: true,
	types.IntensityHigh:   true,
}

func main() {
	var file string
	var dryRun bool
	flag.StringVar(&file, "file", "", "catalog YAML to apply instead of the embedded one")
	flag.BoolVar(&dryRun, "dry-run", false, "print planned upserts without writing")
	flag.Parse()

	raw := defaultCatalogYAML
	if file != "" {
		b, err := os.ReadFile(file)
		if err != nil {
			fmt.Printf("read %s: %v\n", file, err)
			os.Exit(1)
		}
		raw = b
	}

	rows, err := parseCatalog(raw)
	if err != nil {
		fmt.Printf("%v\n", err)
		os.Exit(1)
	}

	if dryRun {
		for _, row := range rows {
			fmt.Printf("would upsert %-24s %-20s %-7s rule=%q\n",
				row.Key, row.RewardType, row.Intensity, row.RuleText)
		}
		return
	}

	application, err := app.New()
	if err != nil {
		fmt.Printf("init app: %v\n", err)
		os.Exit(1)
	}
	defer application.Close()

	dbc := dbctx.Context{Ctx: context.Background()}
	for _, row := range rows {
		if err := application.Repos.ActionSpec.UpsertByKey(dbc, row); err != nil {
			fmt.Printf("upsert %s: %v\n", row.Key, err)
			os.Exit(1)
		}
		fmt.Printf("upserted %s\n", row.Key)
	}
	// Running instances reload within the catalog snapshot TTL; no push needed.
	fmt.Printf("seeded %d actions\n", len(rows))
}

func parseCatalog(raw []byte) ([]*types.ActionSpec, error) {
	var cat seedCatalog
	if err := yaml.Unmarshal(raw, &cat); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if len(cat.Actions) == 0 {
		return nil, fmt.Errorf("catalog has no actions")
	}

	seen := map[string]bool{}
	rows := make([]*types.ActionSpec, 0, len(cat.Actions))
	for i, a := range cat.Actions {
		row, err := buildSpec(a)
		if err != nil {
			return nil, fmt.Errorf("action %d (%s): %w", i, a.Key, err)
		}
		if seen[row.Key] {
			return nil, fmt.Errorf("action %d: duplicate key %q", i, row.Key)
		}
		seen[row.Key] = true
		rows = append(rows, row)
	}
	return rows, nil
}

func buildSpec(a seedAction) (*types.ActionSpec, error) {
	key := strings.TrimSpace(a.Key)
	if key == "" {
		return nil, fmt.Errorf("missing key")
	}
	if strings.TrimSpace(a.Title) == "" {
		return nil, fmt.Errorf("missing title")
	}
	if !seedRewardTypes[a.RewardType] {
		return nil, fmt.Errorf("unknown reward_type %q", a.RewardType)
	}
	intensity := a.Intensity
	if intensity == "" {
		intensity = types.IntensityLow
	}
	if !seedIntensities[intensity] {
		return nil, fmt.Errorf("unknown intensity %q", intensity)
	}
	if a.CooldownSeconds < 0 {
		return nil, fmt.Errorf("negative cooldown_seconds")
	}

	rule, err := buildRule(a.Rule)
	if err != nil {
		return nil, err
	}
	ruleJSON, err := constraint.MarshalRule(rule)
	if err != nil {
		return nil, err
	}

	presentations := a.Presentations
	if len(presentations) == 0 {
		presentations = []string{"card"}
	}
	presJSON, err := json.Marshal(presentations)
	if err != nil {
		return nil, err
	}

	return &types.ActionSpec{
		Key:             key,
		Title:           strings.TrimSpace(a.Title),
		RewardType:      a.RewardType,
		Intensity:       intensity,
		Presentations:   datatypes.JSON(presJSON),
		Rule:            ruleJSON,
		RuleText:        rule.Text(),
		Status:          types.ActionStatusActive,
		StatusActor:     "seed",
		CooldownSeconds: a.CooldownSeconds,
	}, nil
}

// buildRule validates terms against the frozen feature space. Rule.Eval
// fails closed on unknown features, so a typo here would silently make the
// action ineligible forever; the seeder rejects it instead.
func buildRule(sr *seedRule) (*constraint.Rule, error) {
	if sr == nil {
		return &constraint.Rule{}, nil
	}
	probe := sequence.NewState()
	convert := func(block string, in []seedTerm) ([]constraint.Term, error) {
		out := make([]constraint.Term, 0, len(in))
		for _, t := range in {
			switch t.Op {
			case constraint.OpGTE, constraint.OpGT, constraint.OpLTE, constraint.OpLT:
			default:
				return nil, fmt.Errorf("%s: unknown op %q", block, t.Op)
			}
			if _, ok := constraint.FeatureValue(probe, t.Feature); !ok {
				return nil, fmt.Errorf("%s: unknown feature %q", block, t.Feature)
			}
			if t.Value < 0 || t.Value > 1 {
				return nil, fmt.Errorf("%s: value %v outside [0,1] for %q", block, t.Value, t.Feature)
			}
			out = append(out, constraint.Term{Feature: t.Feature, Op: t.Op, Value: t.Value})
		}
		return out, nil
	}

	all, err := convert("all", sr.All)
	if err != nil {
		return nil, err
	}
	anyTerms, err := convert("any", sr.Any)
	if err != nil {
		return nil, err
	}
	if len(all)+len(anyTerms) > constraint.MaxRuleTerms {
		return nil, fmt.Errorf("rule has %d terms, max %d", len(all)+len(anyTerms), constraint.MaxRuleTerms)
	}
	return &constraint.Rule{All: all, Any: anyTerms}, nil
}
