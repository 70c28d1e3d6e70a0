package render

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
)

// skippedContent lists elements whose content is dropped together with the
// element, matching bluemonday's defaults.
var skippedContent = map[string]struct{}{
	"frame":    {},
	"frameset": {},
	"iframe":   {},
	"noembed":  {},
	"noframes": {},
	"noscript": {},
	"object":   {},
	"script":   {},
	"style":    {},
	"title":    {},
}

// sanitizeMarkdown applies policy to the HTML embedded in markdown source.
// Only tags and comments go through the policy; the text between them is
// markdown and is kept byte for byte, so quotes, ampersands and code spans
// survive.
func sanitizeMarkdown(policy *bluemonday.Policy, source string) string {
	z := html.NewTokenizer(strings.NewReader(source))
	var (
		b        strings.Builder
		skipping string
		depth    int
	)

	for {
		tt := z.Next()
		raw := string(z.Raw())
		if tt == html.ErrorToken {
			// An unterminated tag at the end of the source cannot form an
			// element; keep it as text.
			if skipping == "" && !strings.Contains(raw, ">") {
				b.WriteString(raw)
			}
			break
		}

		switch tt {
		case html.TextToken:
			if skipping == "" {
				b.WriteString(raw)
			}
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if skipping != "" {
				if tag == skipping {
					switch tt {
					case html.StartTagToken:
						depth++
					case html.EndTagToken:
						depth--
					}
					if depth == 0 {
						skipping = ""
					}
				}
				continue
			}
			if _, skip := skippedContent[tag]; skip && tt == html.StartTagToken {
				skipping, depth = tag, 1
				continue
			}
			b.WriteString(policy.Sanitize(raw))
		default:
			if skipping == "" {
				b.WriteString(policy.Sanitize(raw))
			}
		}
	}
	return strings.TrimSpace(b.String())
}
