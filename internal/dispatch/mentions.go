package dispatch

import "regexp"

// mentionPattern matches an "@username" mention: a literal "@" followed by a
// run of alphanumerics and hyphens, the source host's own login charset.
var mentionPattern = regexp.MustCompile(`@([A-Za-z0-9-]+)`)

// extractMentions returns the deduplicated logins mentioned in text, in
// first-seen order.
func extractMentions(text string) []string {
	matches := mentionPattern.FindAllStringSubmatch(text, -1)
	seen := make(map[string]bool, len(matches))
	var out []string
	for _, m := range matches {
		login := m[1]
		key := login
		if !seen[key] {
			seen[key] = true
			out = append(out, login)
		}
	}
	return out
}
