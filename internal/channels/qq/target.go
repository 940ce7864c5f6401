package qq

import "strings"

// ParseTarget interprets the delivery target grammar:
//
//	"group:<id>"  → group target
//	"user:<id>"   → direct target (prefix stripped)
//	bare numeric  → group target (convention: private targets are expected
//	                to carry an explicit prefix)
//	anything else → direct target
//
// This is the single place the grammar lives; inbound classification and
// outbound addressing must both go through it so the two never drift.
func ParseTarget(target string) (isGroup bool, id string) {
	if rest, ok := strings.CutPrefix(target, "group:"); ok {
		return true, rest
	}
	if rest, ok := strings.CutPrefix(target, "user:"); ok {
		return false, rest
	}
	if isNumeric(target) {
		return true, target
	}
	return false, target
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
