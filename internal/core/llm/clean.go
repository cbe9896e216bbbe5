package llm

import "strings"

// CleanTitle strips LLM meta-commentary and decoration from a generated
// title and truncates it to maxLen characters.
func CleanTitle(raw string, maxLen int) string {
	junkPrefixes := []string{
		"here is",
		"here's",
		"title:",
		"sure",
		"certainly",
		"(",
		"[",
	}

	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		lower := strings.ToLower(line)
		if strings.HasPrefix(lower, "title:") {
			line = strings.TrimSpace(line[len("title:"):])
			lower = strings.ToLower(line)
		}

		isJunk := false
		for _, prefix := range junkPrefixes {
			if strings.HasPrefix(lower, prefix) {
				isJunk = true
				break
			}
		}
		if isJunk || line == "" {
			continue
		}

		line = strings.TrimPrefix(line, "- ")
		line = strings.TrimPrefix(line, "* ")
		line = strings.Trim(line, "\"'`*")
		line = strings.TrimSuffix(line, ".")
		return truncateToLength(strings.TrimSpace(line), maxLen)
	}

	return ""
}

// truncateToLength truncates text to max characters, adding ellipsis
func truncateToLength(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return strings.TrimSpace(string(r[:maxLen-3])) + "..."
}
