package constraint

import (
	"testing"

	"gorm.io/datatypes"

	"github.com/yungbote/rewardcore-backend/internal/encoding"
	"github.com/yungbote/rewardcore-backend/internal/sequence"
)

func TestRuleEval_ThresholdsAndFailClosed(t *testing.T) {
	s := sequence.NewState()
	s.CapMean[encoding.DimPatternRecognition] = 0.72
	s.DomainAffinity[encoding.DomainIndex("skill_games")] = 0.4

	r := &Rule{All: []Term{
		{Feature: "cap_mean:pattern_recognition", Op: OpGTE, Value: 0.7},
		{Feature: "domain_affinity:skill_games", Op: OpGT, Value: 0.3},
	}}
	if !r.Eval(s) {
		t.Fatalf("rule should match")
	}

	r.All[0].Value = 0.8
	if r.Eval(s) {
		t.Fatalf("rule should not match below threshold")
	}

	unknown := &Rule{All: []Term{{Feature: "cap_mean:spelling", Op: OpGTE, Value: 0}}}
	if unknown.Eval(s) {
		t.Fatalf("unknown feature must fail closed")
	}
	badOp := &Rule{All: []Term{{Feature: "avg_capability", Op: "near", Value: 0.5}}}
	if badOp.Eval(s) {
		t.Fatalf("unknown operator must fail closed")
	}
	if !(&Rule{}).Eval(s) {
		t.Fatalf("empty rule matches everything")
	}
}

func TestRuleEval_AnyBlock(t *testing.T) {
	s := sequence.NewState()
	s.Engagement[encoding.EngSatisfaction] = 0.9

	r := &Rule{Any: []Term{
		{Feature: "engagement:satisfaction", Op: OpGTE, Value: 0.8},
		{Feature: "engagement:completed", Op: OpGTE, Value: 0.8},
	}}
	if !r.Eval(s) {
		t.Fatalf("any-block should match on one true term")
	}
	s.Engagement[encoding.EngSatisfaction] = 0.1
	if r.Eval(s) {
		t.Fatalf("any-block should fail with no true terms")
	}
}

func TestRule_RoundTripAndText(t *testing.T) {
	r := &Rule{All: []Term{
		{Feature: "cap_peak:creativity", Op: OpGTE, Value: 0.75},
		{Feature: "engagement:completed", Op: OpGT, Value: 0.5},
	}}
	raw, err := MarshalRule(r)
	if err != nil {
		t.Fatalf("MarshalRule: %v", err)
	}
	back, err := ParseRule(raw)
	if err != nil {
		t.Fatalf("ParseRule: %v", err)
	}
	if len(back.All) != 2 || back.All[0].Feature != "cap_peak:creativity" {
		t.Fatalf("rule did not round-trip: %+v", back)
	}

	text := r.Text()
	want := "peak creativity at least 0.75 and completed engagement above 0.50"
	if text != want {
		t.Fatalf("text: got %q want %q", text, want)
	}
	if (&Rule{}).Text() != "always eligible" {
		t.Fatalf("empty rule text")
	}

	if _, err := ParseRule(datatypes.JSON([]byte("not json"))); err == nil {
		t.Fatalf("garbage rule must fail to parse")
	}
	empty, err := ParseRule(nil)
	if err != nil || !empty.Empty() {
		t.Fatalf("nil column is the empty rule, got %+v err=%v", empty, err)
	}
}
