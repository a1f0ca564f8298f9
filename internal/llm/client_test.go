package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAssessment_PlainJSON(t *testing.T) {
	a, err := parseAssessment(`{"risk_level":"yellow","confidence":0.72,"reasons":["mentions accident"],"summary":"minor concerns","buyer_notes":"ask for service history"}`)
	require.NoError(t, err)
	assert.Equal(t, RiskYellow, a.RiskLevel)
	assert.InDelta(t, 0.72, a.Confidence, 0.0001)
	assert.Equal(t, []string{"mentions accident"}, a.Reasons)
}

func TestParseAssessment_StripsCodeFences(t *testing.T) {
	a, err := parseAssessment("```json\n{\"risk_level\":\"green\",\"confidence\":0.9,\"reasons\":[],\"summary\":\"ok\",\"buyer_notes\":\"\"}\n```")
	require.NoError(t, err)
	assert.Equal(t, RiskGreen, a.RiskLevel)
}

func TestParseAssessment_RejectsUnknownRiskLevel(t *testing.T) {
	_, err := parseAssessment(`{"risk_level":"orange","confidence":0.5}`)
	assert.Error(t, err)
}

func TestParseAssessment_RejectsOutOfRangeConfidence(t *testing.T) {
	_, err := parseAssessment(`{"risk_level":"green","confidence":1.5}`)
	assert.Error(t, err)
}

func TestParseAssessment_RejectsNonJSON(t *testing.T) {
	_, err := parseAssessment("I cannot help with that.")
	assert.Error(t, err)
}
