package router

import "strings"

const unknownTool = "unknown_tool"

// SanitizeToolName maps a raw name onto ^[A-Za-z_][A-Za-z0-9_-]*$
func SanitizeToolName(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return unknownTool
	}
	builder := strings.Builder{}
	builder.Grow(len(raw) + 1)
	for _, r := range raw {
		if isNameRune(r) {
			builder.WriteRune(r)
			continue
		}
		builder.WriteByte('_')
	}
	sanitized := builder.String()
	if first := sanitized[0]; !isLetter(rune(first)) && first != '_' {
		sanitized = "_" + sanitized
	}
	if sanitized == "_" {
		return unknownTool
	}
	return sanitized
}

func isNameRune(r rune) bool {
	return isLetter(r) || (r >= '0' && r <= '9') || r == '_' || r == '-'
}

func isLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}
