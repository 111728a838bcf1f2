package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"testing"

	"meal-guardrails/internal/core/guardrails"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())

	cmd := NewRootCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(append([]string{"--driver", "sqlite", "--dsn", dsn, "--log-level", "error"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestRulesetCommand_FallsBackForUnknownDiet(t *testing.T) {
	out, err := run(t, "ruleset", "keto", "--mode", "meal_planner", "--locale", "nl", "--refresh")
	require.NoError(t, err)

	var rs guardrails.Ruleset
	require.NoError(t, json.Unmarshal([]byte(out), &rs))
	assert.Equal(t, "keto", rs.DietID)
	assert.Equal(t, guardrails.ModeMealPlanner, rs.Mode)
	assert.Equal(t, guardrails.SourceFallback, rs.Provenance.Source)
	assert.NotEmpty(t, rs.Rules)
	assert.NotEmpty(t, rs.ContentHash)
}

func TestRulesetCommand_Arguments(t *testing.T) {
	_, err := run(t, "ruleset")
	assert.Error(t, err)

	_, err = run(t, "ruleset", "keto", "--mode", "dinner")
	assert.Error(t, err)
}

func TestRescoreCommand_EmptyHistory(t *testing.T) {
	out, err := run(t, "rescore", "user-1")
	require.NoError(t, err)
	assert.Contains(t, out, "user user-1: 0 meals, 0 updated")
}

func TestMigrateCommand(t *testing.T) {
	out, err := run(t, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "migrated")
}

func TestOverridesAreValidated(t *testing.T) {
	_, err := run(t, "--driver", "bogus", "ruleset", "keto")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown database driver")

	_, err = run(t, "--driver", "supabase", "migrate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "supabase url and api key")
}
