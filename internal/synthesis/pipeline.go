package synthesis

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/rewardcore-backend/internal/platform/logger"
)

const synthesisPipelineEnv = "SYNTHESIS_PIPELINE_YAML"

//go:embed synthesis.yaml
var synthesisSpecFS embed.FS

// fallback stage order used when YAML is missing or invalid
var fallbackStageOrder = []string{
	"population_sample",
	"zscore_project",
	"kmeans_cluster",
	"coverage_audit",
	"stability_check",
	"pattern_validate",
	"fairness_audit",
	"concept_emit",
	"lifecycle_review",
}

type yamlPipelineSpec struct {
	Pipeline string          `yaml:"pipeline"`
	Version  int             `yaml:"version"`
	Stages   []yamlStageSpec `yaml:"stages"`
}

type yamlStageSpec struct {
	Name    string         `yaml:"name"`
	Enabled *bool          `yaml:"enabled"`
	Config  map[string]any `yaml:"config"`
}

type pipelineRuntime struct {
	StageOrder []string
	Stages     map[string]yamlStageSpec
}

var runtimeOnce sync.Once
var runtimeCache *pipelineRuntime
var runtimeErr error

func currentPipelineRuntime(log *logger.Logger) *pipelineRuntime {
	runtimeOnce.Do(func() {
		runtimeCache, runtimeErr = loadPipelineRuntime()
	})
	if runtimeErr != nil {
		if log != nil {
			log.Warn("synthesis: pipeline spec load failed; using fallback", "error", runtimeErr)
		}
		return nil
	}
	return runtimeCache
}

func pipelineStageOrder(log *logger.Logger) []string {
	if rt := currentPipelineRuntime(log); rt != nil && len(rt.StageOrder) > 0 {
		return rt.StageOrder
	}
	return fallbackStageOrder
}

func pipelineStageEnabled(log *logger.Logger, name string) bool {
	for _, s := range pipelineStageOrder(log) {
		if s == name {
			return true
		}
	}
	return false
}

func stageConfig(log *logger.Logger, stage string) map[string]any {
	if rt := currentPipelineRuntime(log); rt != nil {
		if spec, ok := rt.Stages[stage]; ok {
			return spec.Config
		}
	}
	return nil
}

func stageFloat(log *logger.Logger, stage, key string, def float64) float64 {
	cfg := stageConfig(log, stage)
	if cfg == nil {
		return def
	}
	switch v := cfg[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return def
}

func stageInt(log *logger.Logger, stage, key string, def int) int {
	cfg := stageConfig(log, stage)
	if cfg == nil {
		return def
	}
	switch v := cfg[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return def
}

func loadPipelineRuntime() (*pipelineRuntime, error) {
	data, err := readSynthesisSpec()
	if err != nil {
		return nil, err
	}

	var spec yamlPipelineSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, err
	}
	if err := validatePipelineSpec(&spec); err != nil {
		return nil, err
	}

	order := make([]string, 0, len(spec.Stages))
	stages := make(map[string]yamlStageSpec, len(spec.Stages))
	for _, stage := range spec.Stages {
		if stage.Name == "" {
			continue
		}
		if stage.Enabled != nil && !*stage.Enabled {
			continue
		}
		order = append(order, stage.Name)
		stages[stage.Name] = stage
	}

	return &pipelineRuntime{
		StageOrder: order,
		Stages:     stages,
	}, nil
}

func readSynthesisSpec() ([]byte, error) {
	if path := strings.TrimSpace(os.Getenv(synthesisPipelineEnv)); path != "" {
		return os.ReadFile(path)
	}
	return synthesisSpecFS.ReadFile("synthesis.yaml")
}

func validatePipelineSpec(spec *yamlPipelineSpec) error {
	if spec == nil {
		return errors.New("missing spec")
	}
	if strings.TrimSpace(spec.Pipeline) != "synthesis" {
		return fmt.Errorf("unexpected pipeline: %s", spec.Pipeline)
	}
	if len(spec.Stages) == 0 {
		return errors.New("no stages defined")
	}

	seen := map[string]bool{}
	for _, stage := range spec.Stages {
		name := strings.TrimSpace(stage.Name)
		if name == "" {
			return errors.New("stage name is required")
		}
		if seen[name] {
			return fmt.Errorf("duplicate stage name: %s", name)
		}
		seen[name] = true
	}
	return nil
}
