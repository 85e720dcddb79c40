package sanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var strict = bluemonday.StrictPolicy()

// Only punctuation escapes are decoded after sanitising. &lt; and &gt; stay encoded so no tag
// can be rebuilt from the policy output.
var punctuation = strings.NewReplacer("&amp;", "&", "&#34;", `"`, "&#39;", "'", "&quot;", `"`)

// Text strips every HTML element from user-authored text and trims surrounding space.
// Entity-encoded markup is decoded before the policy runs so it is stripped like literal tags.
func Text(input string) string {
	return strings.TrimSpace(punctuation.Replace(strict.Sanitize(html.UnescapeString(input))))
}

// OptionalText applies Text to a nullable value, mapping blank results to nil.
func OptionalText(input *string) *string {
	if input == nil {
		return nil
	}
	cleaned := Text(*input)
	if cleaned == "" {
		return nil
	}
	return &cleaned
}
