package embeddings

import "strings"

// DeriveText builds the embedding input for a skill item. Fields are tried in
// priority order: title+summary, then title+content, then summary alone, then
// content alone. A title with neither summary nor content is not embeddable
// on its own. Whitespace-only fields count as absent. An empty result means
// the item has nothing to embed and must be marked failed, not retried.
func DeriveText(title, summary, content *string) string {
	t := trimmed(title)
	s := trimmed(summary)
	c := trimmed(content)

	switch {
	case t != "" && s != "":
		return t + "\n\n" + s
	case t != "" && c != "":
		return t + "\n\n" + c
	case s != "":
		return s
	default:
		return c
	}
}

func trimmed(p *string) string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(*p)
}
