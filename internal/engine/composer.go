package engine

import (
	"fmt"
	"strings"
)

const additionalMatchFormat = "\n\nAlso noted that you mentioned '%s': %s"

// Composer turns matches into the outgoing reply body.
type Composer struct {
	fallback  string
	signature string

	// multi folds second and later matches into the reply as addenda.
	// Fuzzy matching replies to the single best match only.
	multi bool
}

func NewComposer(fallback, signature string, multi bool) *Composer {
	return &Composer{fallback: fallback, signature: signature, multi: multi}
}

// Compose builds the reply text for the given matches. With no matches the
// fallback text is used and the matched keyword is empty. The signature is
// always appended.
func (c *Composer) Compose(matches []Match, rules []Rule) (text, matchedKeyword string) {
	if len(matches) == 0 {
		return c.withSignature(c.fallback), ""
	}

	responses := make(map[string]string, len(rules))
	for _, r := range rules {
		responses[strings.ToLower(r.Keyword)] = r.Response
	}

	var b strings.Builder
	b.WriteString(responses[strings.ToLower(matches[0].Keyword)])
	if c.multi {
		for _, m := range matches[1:] {
			fmt.Fprintf(&b, additionalMatchFormat, m.Keyword, responses[strings.ToLower(m.Keyword)])
		}
	}
	return c.withSignature(b.String()), matches[0].Keyword
}

func (c *Composer) withSignature(body string) string {
	if c.signature == "" {
		return body
	}
	return body + "\n\n" + c.signature
}
