package rfv

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/rfv-segments/internal/common"
)

func TestActionTable_LookupIsPartial(t *testing.T) {
	actions := DefaultActions()

	assert.Nil(t, actions.Suggest("BBB"))
	_, ok := actions.Lookup("BBB")
	assert.False(t, ok)

	top := actions.Suggest("AAA")
	require.NotNil(t, top)
	assert.NotEmpty(t, *top)

	assert.Equal(t, []string{"AAA", "CAA", "DAA", "DDD"}, actions.Scores())
}

func TestParseActionTableYAML(t *testing.T) {
	table, err := ParseActionTableYAML([]byte("AAA: Keep them close.\nBAA: Remind them of us.\n"))
	require.NoError(t, err)
	assert.Equal(t, ActionTable{"AAA": "Keep them close.", "BAA": "Remind them of us."}, table)
}

func TestParseActionTableJSON_RejectsBadTables(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"unknown grade letter", `{"AAE": "x"}`},
		{"lower case score", `{"aaa": "x"}`},
		{"empty action", `{"AAA": ""}`},
		{"non-string action", `{"AAA": 1}`},
		{"empty table", `{}`},
		{"not an object", `["AAA"]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseActionTableJSON([]byte(tt.data))
			require.Error(t, err)
			assert.True(t, errors.Is(err, common.ErrInvalidInput))
		})
	}
}

func TestLoadActionTable(t *testing.T) {
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "actions.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"DDD": "Let them go."}`), 0o644))
	table, err := LoadActionTable(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, "Let them go.", table["DDD"])

	ymlPath := filepath.Join(dir, "actions.yml")
	require.NoError(t, os.WriteFile(ymlPath, []byte("CAA: Reactivate.\n"), 0o644))
	table, err = LoadActionTable(ymlPath)
	require.NoError(t, err)
	assert.Equal(t, "Reactivate.", table["CAA"])

	txtPath := filepath.Join(dir, "actions.txt")
	require.NoError(t, os.WriteFile(txtPath, []byte("AAA=x"), 0o644))
	_, err = LoadActionTable(txtPath)
	assert.True(t, errors.Is(err, common.ErrInvalidInput))

	_, err = LoadActionTable(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
