package event

import "strings"

// MatchPattern reports whether a changed path matches an ignore pattern.
// A trailing "/**" matches the directory and everything under it;
// anything else is an exact match.
func MatchPattern(pattern, path string) bool {
	if dir, ok := strings.CutSuffix(pattern, "/**"); ok {
		return path == dir || strings.HasPrefix(path, dir+"/")
	}
	return path == pattern
}

// OnlyTouches reports whether every changed path matches at least one of
// the given patterns. An empty path set returns false: an event that
// reports no changed files (empty commit, missing file list) must not be
// treated as ignorable.
func OnlyTouches(paths, patterns []string) bool {
	if len(paths) == 0 {
		return false
	}
	for _, p := range paths {
		if !matchAny(p, patterns) {
			return false
		}
	}
	return true
}

func matchAny(path string, patterns []string) bool {
	for _, pat := range patterns {
		if MatchPattern(pat, path) {
			return true
		}
	}
	return false
}
