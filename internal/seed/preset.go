package seed

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed presets.yml
var builtinPresets []byte

// Preset describes the shape of a seeded dataset.
type Preset struct {
	Name            string `yaml:"name"`
	Users           int    `yaml:"users"`
	PostsPerUser    int    `yaml:"posts_per_user"`
	FollowsPerUser  int    `yaml:"follows_per_user"`
	LikesPerPost    int    `yaml:"likes_per_post"`
	CommentsPerPost int    `yaml:"comments_per_post"`
	MaxDays         int    `yaml:"max_days"`
}

type presetFile struct {
	Presets []Preset `yaml:"presets"`
}

// Validate rejects presets that cannot be seeded.
func (p Preset) Validate() error {
	switch {
	case p.Users < 1:
		return fmt.Errorf("preset %q: users must be at least 1", p.Name)
	case p.PostsPerUser < 0, p.FollowsPerUser < 0, p.LikesPerPost < 0, p.CommentsPerPost < 0:
		return fmt.Errorf("preset %q: counts must not be negative", p.Name)
	}
	return nil
}

// ParsePresets decodes a presets document.
func ParsePresets(raw []byte) ([]Preset, error) {
	var f presetFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse presets: %w", err)
	}
	for _, p := range f.Presets {
		if err := p.Validate(); err != nil {
			return nil, err
		}
	}
	return f.Presets, nil
}

// LoadPreset finds name in the presets file at path, or in the built-in
// presets when path is empty.
func LoadPreset(path, name string) (Preset, error) {
	raw := builtinPresets
	if path != "" {
		var err error
		if raw, err = os.ReadFile(path); err != nil {
			return Preset{}, fmt.Errorf("read presets: %w", err)
		}
	}

	presets, err := ParsePresets(raw)
	if err != nil {
		return Preset{}, err
	}
	for _, p := range presets {
		if strings.EqualFold(p.Name, name) {
			return p, nil
		}
	}
	return Preset{}, fmt.Errorf("unknown preset %q", name)
}
