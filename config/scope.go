package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// RestrictedTerm maps a disallowed phrase pattern to the approved wording.
// Patterns are Go regexes applied case-insensitively to both user-facing
// canned text and generated answers.
type RestrictedTerm struct {
	Pattern     string `json:"pattern"`
	Replacement string `json:"replacement"`
}

// ScopeConfig is the per-deployment policy: which product the assistant may
// discuss, how to recognize out-of-scope and engineering questions, and the
// canned strings used by the short-circuit branches. It is data, not code,
// so a deployment variant is a JSON file rather than a rebuild.
type ScopeConfig struct {
	ProductName  string   `json:"product_name"`
	ScopeTag     string   `json:"scope_tag"`     // folder tag reported in foldersUsed
	BaseQueries  []string `json:"base_queries"`  // always-on document search terms
	AllowPattern string   `json:"allow_pattern"` // regex marking in-scope text

	// DenyTerms are other product families the deployment must redirect.
	DenyTerms []string `json:"deny_terms"`

	// Escalation pattern families, OR'd. Any single hit escalates.
	QuantitySpacingPattern string `json:"quantity_spacing_pattern"`
	LoadsCalcsPattern      string `json:"loads_calcs_pattern"`
	CodeCompliancePattern  string `json:"code_compliance_pattern"`

	ContactBlock      string `json:"contact_block"`
	EscalationMessage string `json:"escalation_message"` // contact block appended
	OutOfScopeMessage string `json:"out_of_scope_message"`

	RestrictedTerms []RestrictedTerm `json:"restricted_terms"`
}

// LoadScopeFromFile reads a deployment scope config from a JSON file.
func LoadScopeFromFile(path string) (*ScopeConfig, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var scope ScopeConfig
	decoder := json.NewDecoder(file)
	if err := decoder.Decode(&scope); err != nil {
		return nil, err
	}

	if err := scope.Validate(); err != nil {
		return nil, err
	}
	return &scope, nil
}

// Validate checks the fields the pipeline cannot run without.
func (s *ScopeConfig) Validate() error {
	if s.ProductName == "" {
		return fmt.Errorf("scope config: product_name is required")
	}
	if s.AllowPattern == "" {
		return fmt.Errorf("scope config: allow_pattern is required")
	}
	if s.ContactBlock == "" {
		return fmt.Errorf("scope config: contact_block is required")
	}
	return nil
}

// DefaultScope returns the U-Anchor deployment policy. The escalation
// families are deliberately narrow: bare "code" does not escalate, only
// explicit compliance/approval language does.
func DefaultScope() *ScopeConfig {
	return &ScopeConfig{
		ProductName:  "U-Anchors",
		ScopeTag:     "anchors/u-anchors",
		BaseQueries:  []string{"u-anchor", "u anchor"},
		AllowPattern: `\bu[-\s]?anchor(s)?\b`,
		DenyTerms: []string{
			`snow\s*fence`, `2pipe`, `two\s*pipe`, `guy\s*wire`,
			`elevated\s*stacks?`, `walkway`, `screen`, `dunnage`,
			`pipe\s*support`, `smoke\s*stack`, `exhaust\s*stack`,
			// Bare membrane-material questions are roofing consults, not
			// product questions. The allow pattern still wins when the
			// product is named alongside a material.
			`epdm`, `tpo`, `pvc`,
		},
		QuantitySpacingPattern: `\b(how\s+many|quantity|qty|count|number\s+of|spacing|pattern|layout|o\.?c\.?|on\s*center)\b`,
		LoadsCalcsPattern:      `\b(load|loads|uplift|wind|seismic|psf|kpa|kip|lbs|pounds|newton|calculation|calc|calculate|sizing|size\s+it)\b`,
		CodeCompliancePattern:  `\b(code\s*compliance|compliant|meets\s+code|ibc|asce|fm\s*global|ul\s*(listed|classified)?|approval|approved|pe\s*stamp|stamped|sealed)\b`,
		ContactBlock:           "Please contact Anchor Products at (888) 575-2131 or online at anchorp.com.",
		EscalationMessage:      "For final design, sizing, quantities/spacing, loads, or code/compliance questions, this needs Anchor Engineering review.",
		OutOfScopeMessage: "Right now I’m scoped to **U-Anchors** only.\n" +
			"If your question is about U-Anchors, tell me what you’re trying to secure and what roof type you’re on (if you know it).",
		RestrictedTerms: []RestrictedTerm{
			{Pattern: `u[\s-]*bolt[\s-]*anchors?`, Replacement: "U-Anchor®"},
			{Pattern: `universal[\s-]*anchors?`, Replacement: "U-Anchor®"},
		},
	}
}
