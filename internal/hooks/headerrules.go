package hooks

import (
	"net/http"

	"github.com/iancoleman/strcase"

	schemaindex "github.com/fedgraph/gateway/internal/schemaindex"
)

// ApplyHeaderRules renders the headers a subgraph call carries, evaluating
// rules in order (§6): forward copies a client header through unchanged,
// insert/default set a static value (default only if the header is not
// already forwarded), rename copies a client header under a new name. Rule
// names may be written in any case convention; header keys are always
// canonicalized to kebab-case before being set, matching how subgraph config
// authors typically spell a header rule's target name (e.g. "user_id") while
// still producing a well-formed wire header ("User-Id").
func ApplyHeaderRules(rules []schemaindex.HeaderRule, clientHeaders http.Header) http.Header {
	out := http.Header{}
	for _, rule := range rules {
		switch rule.Kind {
		case schemaindex.HeaderForward:
			if v := clientHeaders.Values(rule.Name); len(v) > 0 {
				out[canonicalHeaderName(rule.Name)] = append([]string(nil), v...)
			}
		case schemaindex.HeaderInsert:
			out.Set(canonicalHeaderName(rule.Name), rule.Value)
		case schemaindex.HeaderRename:
			if v := clientHeaders.Values(rule.Name); len(v) > 0 {
				out[canonicalHeaderName(rule.Rename)] = append([]string(nil), v...)
			}
		case schemaindex.HeaderDefault:
			name := canonicalHeaderName(rule.Name)
			if len(out.Values(name)) == 0 {
				out.Set(name, rule.Value)
			}
		}
	}
	return out
}

func canonicalHeaderName(name string) string {
	return http.CanonicalHeaderKey(strcase.ToDelimited(name, '-'))
}
