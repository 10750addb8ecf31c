package domain

import "strings"

// maxLongNameDisplay bounds long names used as list labels.
const maxLongNameDisplay = 16

// DisplayName is the single canonical naming rule: short name, else long name
// truncated to a display length, else the formatted hex id.
func DisplayName(node Node) string {
	if value := strings.TrimSpace(node.ShortName); value != "" {
		return value
	}
	if value := strings.TrimSpace(node.LongName); value != "" {
		return truncateRunes(value, maxLongNameDisplay)
	}

	return FormatNodeNum(node.Num)
}

func truncateRunes(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}

	return string(runes[:limit])
}
