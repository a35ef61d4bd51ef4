// Package concepts derives subject tags and a difficulty estimate from
// extracted text using keyword rules. The rules are approximate by
// nature; callers treat tagging as best-effort and substitute empty
// tags with difficulty "unknown" when it fails.
package concepts

import (
	"os"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/edustack/doubtsolver/internal/config"
	"github.com/edustack/doubtsolver/internal/model"
)

// TagRule maps a concept tag to the keywords that trigger it.
type TagRule struct {
	Tag      string   `yaml:"tag"`
	Keywords []string `yaml:"keywords"`
}

// Rules is the full keyword rule set.
type Rules struct {
	Tags       []TagRule           `yaml:"tags"`
	Difficulty map[string][]string `yaml:"difficulty"`
}

// Tagger matches text against a rule set.
type Tagger struct {
	rules Rules
}

// New creates a Tagger. When cfg.RulesPath is set, the yaml file at
// that path replaces the built-in default rules.
func New(cfg config.ConceptsConfig) (*Tagger, error) {
	rules := defaultRules
	if cfg.RulesPath != "" {
		data, err := os.ReadFile(cfg.RulesPath)
		if err != nil {
			return nil, eris.Wrapf(err, "concepts: read rules %s", cfg.RulesPath)
		}
		var loaded Rules
		if err := yaml.Unmarshal(data, &loaded); err != nil {
			return nil, eris.Wrapf(err, "concepts: parse rules %s", cfg.RulesPath)
		}
		if len(loaded.Tags) == 0 {
			return nil, eris.Errorf("concepts: rules %s define no tags", cfg.RulesPath)
		}
		rules = loaded
	}
	return &Tagger{rules: rules}, nil
}

// Tag returns the concept tags whose keywords appear in the text,
// sorted, plus a difficulty estimate. Text with no keyword hits yields
// no tags and difficulty "unknown".
func (t *Tagger) Tag(text string) ([]string, model.Difficulty) {
	lower := strings.ToLower(text)

	var tags []string
	for _, rule := range t.rules.Tags {
		for _, kw := range rule.Keywords {
			if strings.Contains(lower, strings.ToLower(kw)) {
				tags = append(tags, rule.Tag)
				break
			}
		}
	}
	sort.Strings(tags)

	return tags, t.difficulty(lower, len(tags) > 0)
}

func (t *Tagger) difficulty(lower string, tagged bool) model.Difficulty {
	// Hard markers win over easy markers; tag hits without either
	// marker default to medium.
	for _, level := range []model.Difficulty{model.DifficultyHard, model.DifficultyEasy} {
		for _, kw := range t.rules.Difficulty[string(level)] {
			if strings.Contains(lower, strings.ToLower(kw)) {
				return level
			}
		}
	}
	if tagged {
		return model.DifficultyMedium
	}
	return model.DifficultyUnknown
}

var defaultRules = Rules{
	Tags: []TagRule{
		{Tag: "physics", Keywords: []string{"force", "velocity", "acceleration", "momentum", "newton", "energy", "friction", "gravity"}},
		{Tag: "chemistry", Keywords: []string{"molecule", "atom", "reaction", "acid", "base", "electron", "bond", "mole"}},
		{Tag: "mathematics", Keywords: []string{"equation", "integral", "derivative", "matrix", "theorem", "polynomial", "probability", "triangle"}},
		{Tag: "biology", Keywords: []string{"cell", "photosynthesis", "dna", "enzyme", "organism", "mitosis", "protein"}},
		{Tag: "computer-science", Keywords: []string{"algorithm", "array", "recursion", "binary", "complexity", "pointer", "stack"}},
	},
	Difficulty: map[string][]string{
		"hard": {"prove", "derive", "integral", "theorem", "equilibrium", "optimize"},
		"easy": {"define", "what is", "list", "name the", "state the"},
	},
}
