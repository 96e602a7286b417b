package core

import "strings"

// TopicMatcher determines whether a topic pattern matches a given topic.
type TopicMatcher interface {
	Match(pattern string, topic string) bool
}

// DefaultMatcher supports exact matching, single-level wildcard (*),
// and multi-level wildcard (#) over dot-separated topics.
//
//	"clicks.home"  matches "clicks.home"
//	"clicks.*"     matches "clicks.home", not "clicks.eu.home"
//	"clicks.#"     matches "clicks", "clicks.home" and "clicks.eu.home"
type DefaultMatcher struct{}

func (DefaultMatcher) Match(pattern, topic string) bool {
	return matchLevels(strings.Split(pattern, "."), strings.Split(topic, "."))
}

func matchLevels(pat, top []string) bool {
	for len(pat) > 0 {
		head := pat[0]
		if head == "#" {
			if len(pat) == 1 {
				return true
			}
			// # swallows zero or more levels
			for i := 0; i <= len(top); i++ {
				if matchLevels(pat[1:], top[i:]) {
					return true
				}
			}
			return false
		}
		if len(top) == 0 || (head != "*" && head != top[0]) {
			return false
		}
		pat, top = pat[1:], top[1:]
	}
	return len(top) == 0
}

// TopicAllowlist admits topics matching any of its patterns.
// An empty allowlist admits every topic.
type TopicAllowlist struct {
	patterns []string
	matcher  TopicMatcher
}

// NewTopicAllowlist builds an allowlist using DefaultMatcher.
func NewTopicAllowlist(patterns ...string) *TopicAllowlist {
	return &TopicAllowlist{patterns: patterns, matcher: DefaultMatcher{}}
}

// Allowed reports whether topic may be published to.
func (a *TopicAllowlist) Allowed(topic string) bool {
	if a == nil || len(a.patterns) == 0 {
		return true
	}
	for _, p := range a.patterns {
		if a.matcher.Match(p, topic) {
			return true
		}
	}
	return false
}
