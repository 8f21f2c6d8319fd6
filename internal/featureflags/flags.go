// Package featureflags evaluates rollout switches configured through FEATURE_FLAGS.
package featureflags

import (
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"
)

// MediaThumbnails stores a downscaled JPEG next to each uploaded image.
const MediaThumbnails = "media_thumbnails"

// rule is a parsed flag value: fully on, fully off, or a percentage of users.
type rule struct {
	raw     string
	percent int
}

// Set holds parsed flags from a list such as "media_thumbnails=on,beta_feed=25%".
// A nil Set has every flag off.
type Set struct {
	rules map[string]rule
}

// Parse builds a Set, skipping malformed pairs and unknown values.
func Parse(raw string) *Set {
	rules := make(map[string]rule)
	for _, pair := range strings.Split(raw, ",") {
		name, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		name, value = normalize(name), normalize(value)
		if name == "" {
			continue
		}
		if r, ok := parseRule(value); ok {
			rules[name] = r
		}
	}
	return &Set{rules: rules}
}

func parseRule(value string) (rule, bool) {
	switch value {
	case "on", "true", "1":
		return rule{raw: value, percent: 100}, true
	case "off", "false", "0":
		return rule{raw: value, percent: 0}, true
	}
	pct, ok := strings.CutSuffix(value, "%")
	if !ok {
		return rule{}, false
	}
	n, err := strconv.Atoi(pct)
	if err != nil {
		return rule{}, false
	}
	return rule{raw: value, percent: min(max(n, 0), 100)}, true
}

// Enabled reports whether name is on for userID. Partial rollouts are
// deterministic per user and never include the zero user.
func (s *Set) Enabled(name string, userID uint) bool {
	if s == nil {
		return false
	}
	r, ok := s.rules[normalize(name)]
	if !ok {
		return false
	}
	switch {
	case r.percent >= 100:
		return true
	case r.percent <= 0 || userID == 0:
		return false
	}
	return bucket(name, userID) < r.percent
}

// Raw returns the configured values keyed by flag name.
func (s *Set) Raw() map[string]string {
	if s == nil {
		return map[string]string{}
	}
	out := make(map[string]string, len(s.rules))
	for name, r := range s.rules {
		out[name] = r.raw
	}
	return out
}

// Snapshot evaluates every configured flag for userID.
func (s *Set) Snapshot(userID uint) map[string]bool {
	if s == nil {
		return map[string]bool{}
	}
	out := make(map[string]bool, len(s.rules))
	for name := range s.rules {
		out[name] = s.Enabled(name, userID)
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func bucket(name string, userID uint) int {
	h := fnv.New32a()
	_, _ = fmt.Fprintf(h, "%s:%d", normalize(name), userID)
	return int(h.Sum32() % 100)
}
