package extraction

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"profilegate/internal/profile/models"
)

var (
	reCodeFence   = regexp.MustCompile("```json\n|```")
	reObjectBlock = regexp.MustCompile(`(?s)\{.*\}`)
	reNonNumeric  = regexp.MustCompile(`[^\d.]`)
)

const identitySchemaJSON = `{
	"type": "object",
	"properties": {
		"last_name":     {"type": ["string", "null"]},
		"first_name":    {"type": ["string", "null"]},
		"date_of_birth": {"type": ["string", "null"]}
	}
}`

var identitySchema = jsonschema.MustCompileString("identity.json", identitySchemaJSON)

// stripCodeFences removes markdown fences the model sometimes wraps JSON in.
func stripCodeFences(s string) string {
	return strings.TrimSpace(reCodeFence.ReplaceAllString(s, ""))
}

// decodeObject parses the whole text as a JSON object, falling back to the
// outermost {...} block embedded in prose.
func decodeObject(text string) (map[string]any, bool) {
	var m map[string]any
	if err := json.Unmarshal([]byte(text), &m); err == nil && m != nil {
		return m, true
	}
	block := reObjectBlock.FindString(text)
	if block == "" {
		return nil, false
	}
	if err := json.Unmarshal([]byte(block), &m); err != nil || m == nil {
		return nil, false
	}
	return m, true
}

// parseIdentity turns a model reply into identity fields. It never fails:
// unparseable replies yield an empty identity, and fields that are missing,
// null or not strings are left empty. degraded reports that the reply did not
// have the expected shape.
func parseIdentity(reply string) (identity models.ExtractedIdentity, degraded bool) {
	m, ok := decodeObject(stripCodeFences(reply))
	if !ok {
		return models.ExtractedIdentity{}, true
	}
	if err := identitySchema.Validate(m); err != nil {
		degraded = true
	}
	return models.ExtractedIdentity{
		LastName:    stringField(m, "last_name"),
		FirstName:   stringField(m, "first_name"),
		DateOfBirth: stringField(m, "date_of_birth"),
	}, degraded
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

// parseSalary reads net_salary from a model reply. Numbers are taken as-is;
// strings have everything but digits and dots removed first. A JSON object
// embedded in prose wins over the prose; only a reply with no object at all
// is treated as a bare amount. Anything unreadable is 0.
func parseSalary(reply string) (salary float64, degraded bool) {
	text := stripCodeFences(reply)

	m, ok := decodeObject(text)
	if !ok {
		if reObjectBlock.MatchString(text) {
			return 0, true
		}
		if v, ok := parseAmount(text); ok {
			return v, false
		}
		return 0, true
	}

	switch v := m["net_salary"].(type) {
	case float64:
		return v, false
	case string:
		if f, ok := parseAmount(v); ok {
			return f, false
		}
		return 0, v != ""
	default:
		return 0, true
	}
}

func parseAmount(s string) (float64, bool) {
	cleaned := reNonNumeric.ReplaceAllString(s, "")
	if cleaned == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
