// Package topic implements the hierarchical topic pattern matcher:
// dot-separated segments with `*` (single-segment) and `#` (trailing
// multi-segment) wildcards.
package topic

import (
	"strings"

	"github.com/oriys/novafabric/internal/ferrors"
)

const (
	wildcardOne = "*"
	wildcardAll = "#"
)

// Pattern is a compiled topic pattern, split once at construction time so
// the router's hot path (matching many published topics per second) never
// re-splits the same pattern string.
type Pattern struct {
	raw      string
	segments []string
}

// Compile validates and compiles a pattern string, failing with
// InvalidTopicPattern on empty input, mid-pattern `#`, or an empty segment.
func Compile(pattern string) (Pattern, error) {
	if pattern == "" {
		return Pattern{}, ferrors.New(ferrors.InvalidTopicPattern, "topic.Compile", "pattern is empty")
	}
	segs := strings.Split(pattern, ".")
	for i, s := range segs {
		if s == "" {
			return Pattern{}, ferrors.New(ferrors.InvalidTopicPattern, "topic.Compile", "empty segment in pattern")
		}
		if s == wildcardAll && i != len(segs)-1 {
			return Pattern{}, ferrors.New(ferrors.InvalidTopicPattern, "topic.Compile", "'#' must be the last segment")
		}
	}
	return Pattern{raw: pattern, segments: segs}, nil
}

// MustCompile is like Compile but panics on error; intended for constant
// patterns known at init time.
func MustCompile(pattern string) Pattern {
	p, err := Compile(pattern)
	if err != nil {
		panic(err)
	}
	return p
}

// String returns the original pattern text.
func (p Pattern) String() string { return p.raw }

// Match reports whether topic matches the compiled pattern, per the
// segment alignment rule.
func (p Pattern) Match(topic string) bool {
	if topic == "" {
		return false
	}
	return matchSegments(p.segments, strings.Split(topic, "."))
}

func matchSegments(pattern, topic []string) bool {
	for i, ps := range pattern {
		if ps == wildcardAll {
			return true // '#' consumes the remainder, including zero segments
		}
		if i >= len(topic) {
			return false
		}
		if ps != wildcardOne && ps != topic[i] {
			return false
		}
	}
	return len(pattern) == len(topic)
}

// ValidateTopic reports whether a concrete (non-pattern) topic string is
// well-formed: non-empty, no empty segments, no wildcard characters.
func ValidateTopic(t string) error {
	if t == "" {
		return ferrors.New(ferrors.InvalidMessage, "topic.ValidateTopic", "topic is empty")
	}
	for _, s := range strings.Split(t, ".") {
		if s == "" {
			return ferrors.New(ferrors.InvalidMessage, "topic.ValidateTopic", "empty segment in topic")
		}
		if s == wildcardOne || s == wildcardAll {
			return ferrors.New(ferrors.InvalidMessage, "topic.ValidateTopic", "topic must not contain wildcard segments")
		}
	}
	return nil
}
