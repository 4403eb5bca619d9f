package permission

import (
	"strings"
	"unicode"
)

const (
	// Separator splits a permission name into segments.
	Separator = ":"
	// Wildcard is the segment that matches anything at its position.
	Wildcard = "*"
)

// Match reports whether candidate is covered by pattern.
//
// A pattern of exactly "*" matches everything. Otherwise both strings are
// compared segment by segment: a "*" segment matches any one candidate
// segment, any other segment must be byte-identical (no case folding), and
// the segment counts must agree. A trailing "*" in the pattern additionally
// matches one or more remaining segments.
//
// Match is pure and allocation-free.
func Match(candidate, pattern string) bool {
	if pattern == Wildcard || candidate == pattern {
		return true
	}

	for {
		pseg, prest, pmore := strings.Cut(pattern, Separator)
		cseg, crest, cmore := strings.Cut(candidate, Separator)

		if !pmore && pseg == Wildcard {
			return true
		}
		if pseg != Wildcard && pseg != cseg {
			return false
		}
		if pmore != cmore {
			return false
		}
		if !pmore {
			return true
		}

		pattern, candidate = prest, crest
	}
}

// MatchAny reports whether candidate is covered by any of the patterns.
func MatchAny(candidate string, patterns []string) bool {
	for _, p := range patterns {
		if Match(candidate, p) {
			return true
		}
	}
	return false
}

// IsPattern reports whether name contains a wildcard segment.
func IsPattern(name string) bool {
	if name == Wildcard {
		return true
	}
	for {
		seg, rest, more := strings.Cut(name, Separator)
		if seg == Wildcard {
			return true
		}
		if !more {
			return false
		}
		name = rest
	}
}

// ValidateName checks a concrete permission name: non-empty, no whitespace,
// no empty segments and no wildcard segments.
func ValidateName(name string) error {
	if err := ValidatePattern(name); err != nil {
		return err
	}
	if IsPattern(name) {
		return ErrMalformedPermission
	}
	return nil
}

// ValidatePattern checks a permission name that may contain wildcard segments.
func ValidatePattern(pattern string) error {
	if pattern == "" {
		return ErrMalformedPermission
	}
	if strings.IndexFunc(pattern, unicode.IsSpace) >= 0 {
		return ErrMalformedPermission
	}
	for {
		seg, rest, more := strings.Cut(pattern, Separator)
		if seg == "" {
			return ErrMalformedPermission
		}
		if !more {
			return nil
		}
		pattern = rest
	}
}
