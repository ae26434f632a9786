package layout

import (
	"strings"

	"github.com/tidwall/gjson"
)

// FullJSONView textually unescapes every nested JSON-string layer of a
// layout at once and returns the result as one deep document. The
// substitutions run in sequence; control characters the host leaves in
// string payloads are dropped first, then the quote/escape layers are
// peeled. The output is read-only and advisory (field inventory only); it
// must never feed a mutation, because the unescaping is lossy.
func FullJSONView(raw string) (string, error) {
	s := raw
	for _, sub := range [...][2]string{
		{"\x00", ""},
		{"\x1c", ""},
		{"\x1d", ""},
		{"\x19", ""},
		{`"[`, `[`},
		{`]"`, `]`},
		{`"{`, `{`},
		{`}"`, `}`},
		{`\\`, `\`},
		{`\"`, `"`},
	} {
		s = strings.ReplaceAll(s, sub[0], sub[1])
	}
	if !gjson.Valid(s) {
		return "", ErrNotJSON
	}
	return s, nil
}
