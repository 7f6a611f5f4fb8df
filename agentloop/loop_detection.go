package agentloop

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"
)

// actionSignature identifies an action by name and a hash of its sorted
// arguments.
func actionSignature(a Action) string {
	keys := make([]string, 0, len(a.Args))
	for k := range a.Args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte(0)
		b.WriteString(a.Args[k])
		b.WriteByte(0)
	}
	h := sha256.Sum256([]byte(b.String()))
	return fmt.Sprintf("%s:%x", strings.ToLower(a.Name), h[:8])
}

// DetectLoop reports whether the last window signatures repeat a pattern
// of length 1, 2 or 3.
func DetectLoop(sigs []string, window int) bool {
	if window <= 0 || len(sigs) < window {
		return false
	}
	recent := sigs[len(sigs)-window:]

	for patternLen := 1; patternLen <= 3; patternLen++ {
		if window%patternLen != 0 || window == patternLen {
			continue
		}
		match := true
		for i := patternLen; i < window && match; i++ {
			if recent[i] != recent[i%patternLen] {
				match = false
			}
		}
		if match {
			return true
		}
	}
	return false
}

func loopWarning(window int) string {
	return fmt.Sprintf("Loop detected: your last %d commands follow a repeating pattern. Try a different approach.", window)
}
