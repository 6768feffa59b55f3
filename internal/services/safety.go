package services

import (
	"context"
	"log"
)

// SafetyFilter applies the post-generation passes: the engineering
// re-check backstop, the templated-style rewrite, and the final
// terminology substitution.
type SafetyFilter struct {
	classifier *Classifier
	generator  AnswerGenerator
	logger     *log.Logger
}

// NewSafetyFilter creates a safety filter.
func NewSafetyFilter(classifier *Classifier, generator AnswerGenerator, logger *log.Logger) *SafetyFilter {
	return &SafetyFilter{
		classifier: classifier,
		generator:  generator,
		logger:     logger,
	}
}

// Apply filters a generated answer. Order matters:
//
//  1. If the model drifted into numeric design guidance, the whole answer
//     is discarded for the fixed escalation message. Input-side checks
//     can't catch fabrication, so this re-check runs on the output.
//  2. Otherwise, a templated answer gets one conversational rewrite call;
//     a failed rewrite keeps the draft.
//
// Terminology substitution runs last on whichever text survived.
func (f *SafetyFilter) Apply(ctx context.Context, answer, policy, grounding, question string) (filtered string, escalated bool) {
	if f.classifier.ContainsEngineeringOutput(answer) {
		f.logger.Printf("Safety filter: engineering output detected, substituting escalation message")
		return f.classifier.EscalationAnswer(), true
	}

	if f.classifier.LooksTemplated(answer) {
		rewritten, err := f.generator.Rewrite(ctx, policy, grounding, question, answer)
		if err != nil {
			f.logger.Printf("Safety filter: rewrite failed, keeping draft: %v", err)
		} else {
			answer = rewritten
		}
	}

	return f.classifier.SubstituteRestrictedTerminology(answer), false
}
