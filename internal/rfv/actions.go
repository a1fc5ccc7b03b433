package rfv

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/joseph-ayodele/rfv-segments/internal/common"
)

// ActionTable maps an RFV score to a marketing/CRM suggestion. It is
// partial: most of the 64 scores have no entry.
type ActionTable map[string]string

// DefaultActions returns the built-in action table.
func DefaultActions() ActionTable {
	return ActionTable{
		"AAA": "Send coupons, ask for referrals, send free samples.",
		"DDD": "Likely churn: few purchases and low spend.",
		"DAA": "Try to win back with discount coupons.",
		"CAA": "Send coupons for reactivation.",
	}
}

// Lookup returns the action for score and whether the table has one.
func (t ActionTable) Lookup(score string) (string, bool) {
	a, ok := t[score]
	return a, ok
}

// Suggest returns a pointer to the action for score, or nil for no suggestion.
func (t ActionTable) Suggest(score string) *string {
	a, ok := t.Lookup(score)
	if !ok {
		return nil
	}
	return &a
}

// Scores lists the scores that carry an action, sorted.
func (t ActionTable) Scores() []string {
	out := make([]string, 0, len(t))
	for s := range t {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// BuildActionTableSchema returns the JSON schema an action table file must satisfy.
func BuildActionTableSchema() map[string]any {
	return map[string]any{
		"type":          "object",
		"minProperties": 1,
		"patternProperties": map[string]any{
			"^[ABCD]{3}$": map[string]any{"type": "string", "minLength": 1},
		},
		"additionalProperties": false,
	}
}

// ValidateJSONAgainstSchema validates "data" against "schemaMap".
func ValidateJSONAgainstSchema(schemaMap map[string]any, data []byte) error {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}

// LoadActionTable reads an action table from a YAML (.yaml/.yml) or JSON file.
func LoadActionTable(path string) (ActionTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read action table: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseActionTableYAML(data)
	case ".json":
		return ParseActionTableJSON(data)
	default:
		return nil, common.NewAppError("ACTIONS_FILE", fmt.Sprintf("unsupported action table file %q (use .yaml, .yml or .json)", path), common.ErrInvalidInput)
	}
}

// ParseActionTableYAML decodes and validates a YAML action table.
func ParseActionTableYAML(data []byte) (ActionTable, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, common.NewAppError("ACTIONS_FILE", "parse yaml", fmt.Errorf("%w: %v", common.ErrInvalidInput, err))
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, common.NewAppError("ACTIONS_FILE", "yaml is not representable as json", fmt.Errorf("%w: %v", common.ErrInvalidInput, err))
	}
	return ParseActionTableJSON(b)
}

// ParseActionTableJSON validates a JSON action table and decodes it.
func ParseActionTableJSON(data []byte) (ActionTable, error) {
	if err := ValidateJSONAgainstSchema(BuildActionTableSchema(), data); err != nil {
		return nil, common.NewAppError("ACTIONS_FILE", "invalid action table", fmt.Errorf("%w: %v", common.ErrInvalidInput, err))
	}
	var t ActionTable
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, common.NewAppError("ACTIONS_FILE", "decode action table", fmt.Errorf("%w: %v", common.ErrInvalidInput, err))
	}
	return t, nil
}
