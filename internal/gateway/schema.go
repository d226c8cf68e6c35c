package gateway

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// JSON Schemas for the backend's structured output. A response failing these
// is treated exactly like a timeout: the deterministic fallback is used.

const inclusivitySchema = `{
	"type": "object",
	"required": ["score", "quality"],
	"properties": {
		"score": {"type": "integer", "minimum": 0, "maximum": 100},
		"quality": {"type": "string", "enum": ["good", "poor"]},
		"issues": {"type": "array", "items": {"type": "string"}},
		"suggestions": {"type": "array", "items": {"type": "string"}}
	}
}`

const evaluationSchema = `{
	"type": "object",
	"required": ["fit_score", "recommendation"],
	"properties": {
		"fit_score": {"type": "integer", "minimum": 0, "maximum": 100},
		"recommendation": {"type": "string", "enum": ["strong_match", "good_match", "moderate_match", "weak_match"]},
		"strengths": {"type": "array", "items": {"type": "string"}},
		"gaps": {"type": "array", "items": {"type": "string"}}
	}
}`

const explanationSchema = `{
	"type": "object",
	"required": ["summary"],
	"properties": {
		"summary": {"type": "string", "minLength": 1},
		"factors": {"type": "array", "items": {"type": "string"}}
	}
}`

// validateResponse checks a cleaned response document against a schema and
// reports every violated field in one error.
func validateResponse(schema, document string) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(schema),
		gojsonschema.NewStringLoader(document),
	)
	if err != nil {
		return fmt.Errorf("not parseable as JSON: %w", err)
	}
	if result.Valid() {
		return nil
	}
	var reasons []string
	for _, desc := range result.Errors() {
		reasons = append(reasons, fmt.Sprintf("%s: %s", desc.Field(), desc.Description()))
	}
	return fmt.Errorf("schema violations: %s", strings.Join(reasons, "; "))
}
