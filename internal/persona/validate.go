package persona

import (
	"encoding/json"
	"fmt"
)

var hallucinationTolerances = map[string]bool{
	"strict":   true,
	"moderate": true,
	"lenient":  true,
}

var constraintListFields = []string{
	"forbidden_topics",
	"required_disclaimers",
	"allowed_actions",
	"blocked_actions",
}

// Validator checks persona documents against the schema. The trait
// allow-list is injected at construction and treated as immutable for the
// process lifetime.
type Validator struct {
	traitAllowList map[string]bool
}

// NewValidator constructs a Validator permitting the given string trait
// values.
func NewValidator(traitAllowList []string) *Validator {
	allowed := make(map[string]bool, len(traitAllowList))
	for _, v := range traitAllowList {
		allowed[v] = true
	}
	return &Validator{traitAllowList: allowed}
}

// Validate checks the document. The size ceiling is enforced before any
// structural checks and short-circuits with ErrPayloadTooLarge; structural
// validation collects every violation instead of failing on the first.
func (v *Validator) Validate(doc Document) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return &ValidationError{Fields: []FieldError{{Field: "persona", Message: "document is not serializable"}}}
	}
	if len(raw) > MaxDocumentBytes {
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrPayloadTooLarge, len(raw), MaxDocumentBytes)
	}

	var violations []FieldError
	add := func(field, message string) {
		violations = append(violations, FieldError{Field: field, Message: message})
	}

	version, ok := doc["version"].(string)
	if !ok || version == "" {
		add("version", "required and must be a string")
	} else if _, err := ParseVersion(version); err != nil {
		add("version", "must be a semantic version (major.minor.patch)")
	}

	if raw, ok := doc["personality"]; ok {
		v.validatePersonality(raw, add)
	}
	if raw, ok := doc["constraints"]; ok {
		v.validateConstraints(raw, add)
	}
	if raw, ok := doc["guardrails"]; ok {
		v.validateGuardrails(raw, add)
	}
	if raw, ok := doc["prompt_template"]; ok {
		if _, isString := raw.(string); !isString {
			add("prompt_template", "must be a string")
		}
	}

	if len(violations) > 0 {
		return &ValidationError{Fields: violations}
	}
	return nil
}

func (v *Validator) validatePersonality(raw any, add func(field, message string)) {
	personality, ok := raw.(map[string]any)
	if !ok {
		add("personality", "must be an object")
		return
	}
	if traitsRaw, ok := personality["traits"]; ok {
		traits, ok := traitsRaw.(map[string]any)
		if !ok {
			add("personality.traits", "must be an object")
		} else {
			for name, value := range traits {
				field := "personality.traits." + name
				switch val := value.(type) {
				case string:
					if !v.traitAllowList[val] {
						add(field, fmt.Sprintf("string value %q is not in the allowed set", val))
					}
				default:
					num, ok := asNumber(value)
					if !ok {
						add(field, "must be a number or an allowed string")
					} else if num < 0 || num > 1 {
						add(field, "numeric value must be between 0 and 1")
					}
				}
			}
		}
	}
	if axisRaw, ok := personality["assistant_axis"]; ok {
		if !isStringArray(axisRaw) {
			add("personality.assistant_axis", "must be an array of strings")
		}
	}
	if vectorsRaw, ok := personality["neural_vectors"]; ok {
		vectors, ok := vectorsRaw.(map[string]any)
		if !ok {
			add("personality.neural_vectors", "must be an object of numbers")
		} else {
			for name, value := range vectors {
				if _, ok := asNumber(value); !ok {
					add("personality.neural_vectors."+name, "must be a number")
				}
			}
		}
	}
}

func (v *Validator) validateConstraints(raw any, add func(field, message string)) {
	constraints, ok := raw.(map[string]any)
	if !ok {
		add("constraints", "must be an object")
		return
	}
	if lengthRaw, ok := constraints["max_response_length"]; ok {
		num, isNum := asNumber(lengthRaw)
		if !isNum || num != float64(int64(num)) || num <= 0 {
			add("constraints.max_response_length", "must be a positive integer")
		}
	}
	for _, field := range constraintListFields {
		if listRaw, ok := constraints[field]; ok {
			if !isStringArray(listRaw) {
				add("constraints."+field, "must be an array of strings")
			}
		}
	}
}

func (v *Validator) validateGuardrails(raw any, add func(field, message string)) {
	guardrails, ok := raw.(map[string]any)
	if !ok {
		add("guardrails", "must be an object")
		return
	}
	if thresholdRaw, ok := guardrails["toxicity_threshold"]; ok {
		num, isNum := asNumber(thresholdRaw)
		if !isNum || num < 0 || num > 1 {
			add("guardrails.toxicity_threshold", "must be a number between 0 and 1")
		}
	}
	if toleranceRaw, ok := guardrails["hallucination_tolerance"]; ok {
		tolerance, isString := toleranceRaw.(string)
		if !isString || !hallucinationTolerances[tolerance] {
			add("guardrails.hallucination_tolerance", "must be one of strict, moderate, lenient")
		}
	}
	if citeRaw, ok := guardrails["source_citation_required"]; ok {
		if _, isBool := citeRaw.(bool); !isBool {
			add("guardrails.source_citation_required", "must be a boolean")
		}
	}
}

func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func isStringArray(v any) bool {
	items, ok := v.([]any)
	if !ok {
		// Documents constructed in Go may carry []string directly.
		_, ok := v.([]string)
		return ok
	}
	for _, item := range items {
		if _, ok := item.(string); !ok {
			return false
		}
	}
	return true
}
