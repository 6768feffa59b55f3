package services

import (
	"fmt"
	"regexp"
	"strings"

	"sales-copilot/config"
)

// ClassificationResult is the per-turn signal bundle derived from the raw
// user utterance. It is ephemeral and recomputed on every turn.
type ClassificationResult struct {
	DocsOnly           bool `json:"docs_only"`
	InScope            bool `json:"in_scope"`
	OutOfScope         bool `json:"out_of_scope"`
	NeedsEscalation    bool `json:"needs_escalation"`
	MentionsRestricted bool `json:"mentions_restricted"`
}

// patternRule is one tagged regex in a rule table. Tables are data so new
// phrasing can be added without touching control flow.
type patternRule struct {
	tag string
	re  *regexp.Regexp
}

// termSub is a compiled restricted-term substitution.
type termSub struct {
	re          *regexp.Regexp
	replacement string
}

// Classifier holds the compiled lexical rule tables for one deployment
// scope. Every predicate is pure: same input, same answer, no shared state.
type Classifier struct {
	scope *config.ScopeConfig

	docNouns   *regexp.Regexp
	advisory   *regexp.Regexp
	allow      *regexp.Regexp
	deny       []patternRule
	escalation []patternRule

	// Post-generation detectors. These look at generated text, not input.
	numericLoads *regexp.Regexp
	spacingOC    *regexp.Regexp
	counts       *regexp.Regexp

	// Templated-answer heuristics.
	headingOpener *regexp.Regexp
	sectionLabels *regexp.Regexp
	bulletLine    *regexp.Regexp

	restricted []termSub
}

// Shared across deployments: what counts as "just send me the file" versus
// an advisory question. Advisory language always wins when both appear.
const (
	docNounPattern  = `\b(doc|docs|document|documents|pdf|file|files|sheet|sheets|sales\s*sheet|data\s*sheet|submittal|spec|specs|manual|installation|install|instructions|cad|dwg|step|stp|drawing|drawings|details)\b`
	advisoryPattern = `\b(how|why|difference|compare|recommend|which|best|should i|what do i|help me choose|tell me about|explain)\b`

	numericLoadsPattern = `\b\d+(\.\d+)?\s*(psf|kpa|kip|kips|lb|lbs|pounds|n|kn|mph)\b`
	spacingOCPattern    = `\b\d+(\.\d+)?\s*(inches|inch|in|ft|feet|mm|cm|m)\b.*\b(o\.?c\.?|on\s*center)\b`
	countsPattern       = `\b(use|need|required|minimum)\b.*\b\d+\b.*\b(anchor|anchors|attachment|attachments)\b`

	sectionLabelsPattern = `\b(applications|benefits|components|typical applications|sales view|main components|when to choose)\b`
)

// NewClassifier compiles the rule tables for a deployment scope.
func NewClassifier(scope *config.ScopeConfig) (*Classifier, error) {
	c := &Classifier{
		scope:      scope,
		docNouns:   regexp.MustCompile(docNounPattern),
		advisory:   regexp.MustCompile(advisoryPattern),
		bulletLine: regexp.MustCompile(`(?m)^\s*[-•]`),
	}

	allow, err := regexp.Compile(`(?i)` + scope.AllowPattern)
	if err != nil {
		return nil, fmt.Errorf("scope allow pattern: %w", err)
	}
	c.allow = allow

	for _, term := range scope.DenyTerms {
		re, err := regexp.Compile(`(?i)\b(?:` + term + `)\b`)
		if err != nil {
			return nil, fmt.Errorf("deny term %q: %w", term, err)
		}
		c.deny = append(c.deny, patternRule{tag: term, re: re})
	}

	for _, family := range []struct {
		tag     string
		pattern string
	}{
		{"quantity_spacing", scope.QuantitySpacingPattern},
		{"loads_calcs", scope.LoadsCalcsPattern},
		{"code_compliance", scope.CodeCompliancePattern},
	} {
		if family.pattern == "" {
			continue
		}
		re, err := regexp.Compile(`(?i)` + family.pattern)
		if err != nil {
			return nil, fmt.Errorf("escalation family %s: %w", family.tag, err)
		}
		c.escalation = append(c.escalation, patternRule{tag: family.tag, re: re})
	}

	c.numericLoads = regexp.MustCompile(`(?i)` + numericLoadsPattern)
	c.spacingOC = regexp.MustCompile(`(?i)` + spacingOCPattern)
	c.counts = regexp.MustCompile(`(?i)` + countsPattern)

	// "U-Anchors" as an opener, bare or bolded, reads like a spec sheet.
	product := regexp.QuoteMeta(strings.ToLower(scope.ProductName))
	product = strings.ReplaceAll(product, "-", `[-\s]`)
	c.headingOpener = regexp.MustCompile(`(?i)^(\*\*)?(` + product + `|what they are)\b`)
	c.sectionLabels = regexp.MustCompile(`(?i)` + sectionLabelsPattern)

	for _, term := range scope.RestrictedTerms {
		re, err := regexp.Compile(`(?i)\b` + term.Pattern + `\b`)
		if err != nil {
			return nil, fmt.Errorf("restricted term %q: %w", term.Pattern, err)
		}
		c.restricted = append(c.restricted, termSub{re: re, replacement: term.Replacement})
	}

	return c, nil
}

// Classify runs every input-side predicate over one utterance.
func (c *Classifier) Classify(text string) ClassificationResult {
	return ClassificationResult{
		DocsOnly:           c.LooksLikeDocsOnlyRequest(text),
		InScope:            c.IsInScope(text),
		OutOfScope:         c.IsClearlyOutOfScope(text),
		NeedsEscalation:    c.NeedsEngineeringEscalation(text),
		MentionsRestricted: c.MentionsRestrictedTerminology(text),
	}
}

// LooksLikeDocsOnlyRequest is true for pure document-fetch asks: a document
// noun with no advisory language around it.
func (c *Classifier) LooksLikeDocsOnlyRequest(text string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	if t == "" {
		return false
	}
	return c.docNouns.MatchString(t) && !c.advisory.MatchString(t)
}

// IsInScope reports whether the text names the configured product.
func (c *Classifier) IsInScope(text string) bool {
	return c.allow.MatchString(strings.ToLower(text))
}

// IsClearlyOutOfScope reports whether the text names a known other product
// family. A scope-token match always overrides the deny table.
func (c *Classifier) IsClearlyOutOfScope(text string) bool {
	t := strings.ToLower(text)
	if c.allow.MatchString(t) {
		return false
	}
	for _, rule := range c.deny {
		if rule.re.MatchString(t) {
			return true
		}
	}
	return false
}

// NeedsEngineeringEscalation is true when the text matches any escalation
// family: quantity/spacing, loads/calcs, or code-compliance language.
func (c *Classifier) NeedsEngineeringEscalation(text string) bool {
	t := strings.ToLower(text)
	for _, rule := range c.escalation {
		if rule.re.MatchString(t) {
			return true
		}
	}
	return false
}

// MentionsRestrictedTerminology detects the disallowed phrase family.
func (c *Classifier) MentionsRestrictedTerminology(text string) bool {
	for _, sub := range c.restricted {
		if sub.re.MatchString(text) {
			return true
		}
	}
	return false
}

// SubstituteRestrictedTerminology rewrites every restricted phrase to the
// approved wording. Applied to canned text and generated answers alike.
func (c *Classifier) SubstituteRestrictedTerminology(text string) string {
	for _, sub := range c.restricted {
		text = sub.re.ReplaceAllString(text, sub.replacement)
	}
	return text
}

// ContainsEngineeringOutput catches numeric design guidance in generated
// text: load values, spacing with on-center language, or anchor counts.
func (c *Classifier) ContainsEngineeringOutput(answer string) bool {
	t := strings.ToLower(answer)
	return c.numericLoads.MatchString(t) || c.spacingOC.MatchString(t) || c.counts.MatchString(t)
}

// LooksTemplated flags spec-sheet style answers: a heading-like opener,
// canned section labels, or six-plus bullet lines.
func (c *Classifier) LooksTemplated(answer string) bool {
	a := strings.TrimSpace(answer)
	if a == "" {
		return false
	}
	if c.headingOpener.MatchString(a) {
		return true
	}
	if c.sectionLabels.MatchString(a) {
		return true
	}
	return len(c.bulletLine.FindAllStringIndex(a, -1)) >= 6
}

// EscalationAnswer builds the engineering-escalation message with the
// contact block, with terminology substitution already applied.
func (c *Classifier) EscalationAnswer() string {
	msg := c.scope.EscalationMessage + "\n" + c.scope.ContactBlock
	return c.SubstituteRestrictedTerminology(msg)
}

// OutOfScopeAnswer is the fixed redirect for other product families.
func (c *Classifier) OutOfScopeAnswer() string {
	return c.SubstituteRestrictedTerminology(c.scope.OutOfScopeMessage)
}
