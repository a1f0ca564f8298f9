package risk

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/carscout-ai/carscout/internal/domain"
	"github.com/carscout-ai/carscout/internal/llm"
	"github.com/carscout-ai/carscout/internal/queue"
)

const llmPromptVersion = "v1"

// llmClient is the subset of llm.Client the stage needs.
type llmClient interface {
	Assess(ctx context.Context, req llm.Request) (llm.Assessment, error)
}

// llmCache is the subset of llm.Cache the stage needs.
type llmCache interface {
	Get(ctx context.Context, descriptionHash, promptVersion string) (llm.Assessment, bool, error)
	Put(ctx context.Context, descriptionHash, promptVersion string, a llm.Assessment) error
}

// Stage implements pipeline.Stage for risk (§4.6): keyword scan, rule
// decision table, optional cached LLM escalation, merge, persist.
type Stage struct {
	store    *Store
	llm      llmClient
	cache    llmCache
	deadline time.Duration
}

func NewStage(store *Store, client llmClient, cache llmCache) *Stage {
	return &Stage{store: store, llm: client, cache: cache, deadline: 20 * time.Second}
}

func (s *Stage) Name() queue.Stage       { return queue.StageRisk }
func (s *Stage) Deadline() time.Duration { return s.deadline }

func (s *Stage) Run(ctx context.Context, listingID uuid.UUID) queue.Result {
	text, err := s.store.loadText(ctx, listingID)
	if err != nil {
		return queue.Result{Outcome: queue.OutcomeDeadLetter, Reason: "load text: " + err.Error()}
	}

	flags := Scan(text.Title + " " + text.Description)
	rule := EvaluateRules(flags)

	eval := Evaluation{
		RiskLevel:      rule.RiskLevel,
		RuleConfidence: rule.Confidence,
		HasHardFlag:    hasHardFlag(flags),
	}

	if rule.Escalate {
		assessment, used, unavailable := s.escalate(ctx, text, listingID)
		eval.LLMUsed = used
		eval.LLMUnavailable = unavailable
		if used {
			eval.LLMSummary = assessment.Summary
			eval.LLMReasons = assessment.Reasons
			eval.LLMConfidence = assessment.Confidence
			level, confidence := Merge(rule, domain.RiskLevel(assessment.RiskLevel), assessment.Confidence, true)
			eval.RiskLevel = level
			eval.RuleConfidence = confidence
		}
	}

	if eval.HasHardFlag {
		// Hard accident/salvage evidence always keeps risk at red even
		// if an LLM escalation (which never runs alongside a hard flag
		// per the rule table, but defensively held here) disagreed.
		eval.RiskLevel = domain.RiskRed
	}

	if err := s.store.Save(ctx, listingID, flags, eval); err != nil {
		return queue.Result{Outcome: queue.OutcomeRetry, Reason: "save: " + err.Error()}
	}
	return queue.Result{Outcome: queue.OutcomeDone, NextStage: queue.StageScore}
}

// escalate consults the LLM cache first, then the client, never
// blocking the pipeline on an LLM failure (§4.6, §7).
func (s *Stage) escalate(ctx context.Context, text listingText, listingID uuid.UUID) (llm.Assessment, bool, bool) {
	cached, ok, err := s.cache.Get(ctx, text.DescriptionHash, llmPromptVersion)
	if err == nil && ok {
		return cached, true, false
	}

	assessment, err := s.llm.Assess(ctx, llm.Request{
		PromptVersion: llmPromptVersion,
		Title:         text.Title,
		Description:   text.Description,
	})
	if err != nil {
		return llm.Assessment{}, false, true
	}

	_ = s.cache.Put(ctx, text.DescriptionHash, llmPromptVersion, assessment)
	return assessment, true, false
}
