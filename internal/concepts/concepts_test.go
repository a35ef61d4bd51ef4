package concepts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edustack/doubtsolver/internal/config"
	"github.com/edustack/doubtsolver/internal/model"
)

func newDefault(t *testing.T) *Tagger {
	t.Helper()
	tagger, err := New(config.ConceptsConfig{})
	require.NoError(t, err)
	return tagger
}

func TestTagMatchesSubjects(t *testing.T) {
	tagger := newDefault(t)

	tags, diff := tagger.Tag("A force of 10 N acts on a body. Find its acceleration.")
	assert.Equal(t, []string{"physics"}, tags)
	assert.Equal(t, model.DifficultyMedium, diff)
}

func TestTagMultipleSubjectsSorted(t *testing.T) {
	tagger := newDefault(t)

	tags, _ := tagger.Tag("Write an algorithm to solve this equation about momentum.")
	assert.Equal(t, []string{"computer-science", "mathematics", "physics"}, tags)
}

func TestTagCaseInsensitive(t *testing.T) {
	tagger := newDefault(t)

	tags, _ := tagger.Tag("PHOTOSYNTHESIS in plants")
	assert.Equal(t, []string{"biology"}, tags)
}

func TestTagNoMatch(t *testing.T) {
	tagger := newDefault(t)

	tags, diff := tagger.Tag("hello there, nice weather today")
	assert.Empty(t, tags)
	assert.Equal(t, model.DifficultyUnknown, diff)
}

func TestDifficultyMarkers(t *testing.T) {
	tagger := newDefault(t)

	tests := []struct {
		text string
		want model.Difficulty
	}{
		{"Prove the theorem about triangle congruence", model.DifficultyHard},
		{"Define velocity", model.DifficultyEasy},
		{"A reaction between an acid and a base", model.DifficultyMedium},
		// Hard markers win when both appear.
		{"Define and then derive the equation of motion", model.DifficultyHard},
	}
	for _, tt := range tests {
		_, diff := tagger.Tag(tt.text)
		assert.Equal(t, tt.want, diff, tt.text)
	}
}

func TestCustomRulesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	rules := `
tags:
  - tag: history
    keywords: [empire, treaty]
difficulty:
  hard: [analyze]
  easy: [when did]
`
	require.NoError(t, os.WriteFile(path, []byte(rules), 0644))

	tagger, err := New(config.ConceptsConfig{RulesPath: path})
	require.NoError(t, err)

	tags, diff := tagger.Tag("When did the empire fall?")
	assert.Equal(t, []string{"history"}, tags)
	assert.Equal(t, model.DifficultyEasy, diff)

	// Default rules are replaced entirely.
	tags, _ = tagger.Tag("force and acceleration")
	assert.Empty(t, tags)
}

func TestCustomRulesFileErrors(t *testing.T) {
	_, err := New(config.ConceptsConfig{RulesPath: "/nonexistent/rules.yaml"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read rules")

	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("tags: {not a list"), 0644))
	_, err = New(config.ConceptsConfig{RulesPath: bad})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse rules")

	empty := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("tags: []"), 0644))
	_, err = New(config.ConceptsConfig{RulesPath: empty})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "define no tags")
}
