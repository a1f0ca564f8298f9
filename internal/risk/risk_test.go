package risk

import (
	"testing"

	"github.com/carscout-ai/carscout/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestScan_FindsKnownKeywords(t *testing.T) {
	flags := Scan("Колата е след катастрофа, спешно за продажба")
	assert.Contains(t, flags, CategoryAccident)
	assert.Contains(t, flags, CategoryUrgency)
}

func TestEvaluateRules_HardFlagIsRed(t *testing.T) {
	flags := map[Category][]string{CategorySalvage: {"salvage"}}
	v := EvaluateRules(flags)
	assert.Equal(t, domain.RiskRed, v.RiskLevel)
	assert.GreaterOrEqual(t, v.Confidence, 0.8)
}

func TestEvaluateRules_ThreeSoftFlagsIsYellow(t *testing.T) {
	flags := map[Category][]string{
		CategoryImport:         {"import"},
		CategoryUrgency:        {"urgent"},
		CategoryOdometerTamper: {"rolled back"},
	}
	v := EvaluateRules(flags)
	assert.Equal(t, domain.RiskYellow, v.RiskLevel)
	assert.GreaterOrEqual(t, v.Confidence, 0.6)
}

func TestEvaluateRules_ZeroFlagsIsGreen(t *testing.T) {
	v := EvaluateRules(map[Category][]string{})
	assert.Equal(t, domain.RiskGreen, v.RiskLevel)
	assert.Equal(t, 0.7, v.Confidence)
}

func TestEvaluateRules_UncertainEscalates(t *testing.T) {
	flags := map[Category][]string{CategoryCosmetic: {"scratch"}}
	v := EvaluateRules(flags)
	assert.True(t, v.Escalate)
}

func TestMerge_LLMWinsOnlyWhenMoreConfident(t *testing.T) {
	rule := RuleVerdict{RiskLevel: domain.RiskYellow, Confidence: 0.5}
	level, conf := Merge(rule, domain.RiskGreen, 0.9, true)
	assert.Equal(t, domain.RiskGreen, level)
	assert.Equal(t, 0.9, conf)

	level, conf = Merge(rule, domain.RiskRed, 0.3, true)
	assert.Equal(t, domain.RiskYellow, level)
	assert.Equal(t, 0.5, conf)
}

func TestMerge_LLMUnavailableKeepsRule(t *testing.T) {
	rule := RuleVerdict{RiskLevel: domain.RiskYellow, Confidence: 0.5}
	level, conf := Merge(rule, domain.RiskGreen, 0.9, false)
	assert.Equal(t, domain.RiskYellow, level)
	assert.Equal(t, 0.5, conf)
}
