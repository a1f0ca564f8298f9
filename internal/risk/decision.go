package risk

import "github.com/carscout-ai/carscout/internal/domain"

const (
	hardFlagConfidence = 0.8
	softFlagThreshold  = 3
	softFlagConfidence = 0.6
	zeroFlagConfidence = 0.7
	escalateThreshold  = 0.7
)

// RuleVerdict is the rule stage's output (§4.6).
type RuleVerdict struct {
	Flags      map[Category][]string
	RiskLevel  domain.RiskLevel
	Confidence float64
	Escalate   bool
}

// EvaluateRules applies §4.6's decision table to the keyword scan.
func EvaluateRules(flags map[Category][]string) RuleVerdict {
	if hasHardFlag(flags) {
		return RuleVerdict{Flags: flags, RiskLevel: domain.RiskRed, Confidence: hardFlagConfidence}
	}

	soft := softFlagCount(flags)
	if soft >= softFlagThreshold {
		return RuleVerdict{Flags: flags, RiskLevel: domain.RiskYellow, Confidence: softFlagConfidence}
	}

	if len(flags) == 0 {
		return RuleVerdict{Flags: flags, RiskLevel: domain.RiskGreen, Confidence: zeroFlagConfidence}
	}

	// Uncertain: some soft signal but not enough to commit. Confidence
	// here is deliberately below escalateThreshold so the stage always
	// escalates to the LLM (§4.6 "Otherwise uncertain").
	conf := zeroFlagConfidence - 0.1*float64(soft)
	if conf < 0 {
		conf = 0
	}
	return RuleVerdict{Flags: flags, RiskLevel: domain.RiskYellow, Confidence: conf, Escalate: conf < escalateThreshold}
}

// Merge picks the winning risk level between rule and (optional) LLM
// assessment: LLM wins iff its confidence strictly exceeds the rule's
// (§4.6).
func Merge(rule RuleVerdict, llmLevel domain.RiskLevel, llmConfidence float64, llmAvailable bool) (domain.RiskLevel, float64) {
	if llmAvailable && llmConfidence > rule.Confidence {
		return llmLevel, llmConfidence
	}
	return rule.RiskLevel, rule.Confidence
}
