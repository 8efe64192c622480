package harness

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunScenario(t *testing.T) {
	s, err := LoadScenario(filepath.Join("testdata", "people_scenario.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "people-basic", s.Name)

	result, err := Run(context.Background(), s)
	require.NoError(t, err)

	people := result.Rows["people"]
	require.Len(t, people, 3)
	for _, row := range people {
		want := row["first_name"].(string) + " " + row["last_name"].(string)
		assert.Equal(t, want, row["full_name"])
	}
}

func TestRunScenarioSeedOverride(t *testing.T) {
	s, err := LoadScenario(filepath.Join("testdata", "people_scenario.yaml"))
	require.NoError(t, err)

	seed := int64(99)
	s.Seed = &seed
	a, err := Run(context.Background(), s)
	require.NoError(t, err)
	b, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, a.Rows["people"], b.Rows["people"], "same seed, same output")

	other := int64(100)
	s.Seed = &other
	c, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.NotEqual(t, a.Rows["people"], c.Rows["people"], "different seed, different output")
}

func TestRunScenarioFailedExpectation(t *testing.T) {
	s, err := LoadScenario(filepath.Join("testdata", "people_scenario.yaml"))
	require.NoError(t, err)

	wrong := 99
	s.Expect[0].Rows = &wrong
	_, err = Run(context.Background(), s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `scenario "people-basic"`)
	assert.Contains(t, err.Error(), "want 99")
}

func writeScenario(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()

	config, err := os.ReadFile(filepath.Join("testdata", "people.yaml"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "people.yaml"), config, 0o644))

	path := filepath.Join(dir, "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadScenarioRejects(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			"missing name",
			"config: people.yaml\nexpect:\n  - table: people\n    rows: 3\n",
			"name is required",
		},
		{
			"missing config",
			"name: x\nexpect:\n  - table: people\n    rows: 3\n",
			"config is required",
		},
		{
			"config file absent",
			"name: x\nconfig: nowhere.yaml\nexpect:\n  - table: people\n    rows: 3\n",
			"config file",
		},
		{
			"empty expect",
			"name: x\nconfig: people.yaml\n",
			"expect list is required",
		},
		{
			"expectation with no checks",
			"name: x\nconfig: people.yaml\nexpect:\n  - table: people\n",
			"at least one check",
		},
		{
			"cell without column",
			"name: x\nconfig: people.yaml\nexpect:\n  - table: people\n    cells:\n      - row_id: 1\n        value: 1\n",
			"column is required",
		},
		{
			"incomplete fk check",
			"name: x\nconfig: people.yaml\nexpect:\n  - table: people\n    fk_member:\n      - column: person_id\n",
			"parent_table and parent_column are required",
		},
		{
			"unknown field",
			"name: x\nconfig: people.yaml\ntable: oops\nexpect:\n  - table: people\n    rows: 3\n",
			"field table not found",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadScenario(writeScenario(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
