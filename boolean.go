package jsbridge

import (
	"strconv"
	"strings"

	"github.com/cryguy/jsbridge/internal/core"
)

var booleanWords = []struct {
	word  string
	value bool
}{
	{"true", true}, {"false", false},
	{"yes", true}, {"no", false},
	{"on", true}, {"off", false},
}

// GetBoolean parses s as a boolean. Numbers are true when non-zero. The
// words true, false, yes, no, on and off match case-insensitively, as does
// any prefix of them that is not shared by two words of opposite value.
func GetBoolean(s string) (bool, error) {
	t := strings.TrimSpace(s)
	if i, err := strconv.ParseInt(t, 0, 64); err == nil {
		return i != 0, nil
	}
	if f, err := strconv.ParseFloat(t, 64); err == nil {
		return f != 0, nil
	}

	t = strings.ToLower(t)
	if t != "" {
		var (
			found, value bool
			ambiguous    bool
		)
		for _, w := range booleanWords {
			if !strings.HasPrefix(w.word, t) {
				continue
			}
			if found && value != w.value {
				ambiguous = true
			}
			found, value = true, w.value
		}
		if found && !ambiguous {
			return value, nil
		}
	}
	return false, core.Errorf(core.KindConversion, "getboolean", "expected boolean value but got %q", s)
}
