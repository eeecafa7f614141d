package jsonx

// Extract isolates the first balanced JSON object from free-form model output.
// Vision and chat models wrap JSON in prose more often than not, so we scan for
// the first '{' and walk to its matching '}' while respecting string literals
// and escapes. Returns "" when no complete object is present (truncated output
// included).
func Extract(response string) string {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(response); i++ {
		c := response[i]

		if start == -1 {
			if c == '{' {
				start = i
				depth = 1
			}
			continue
		}

		if escaped {
			escaped = false
			continue
		}

		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return response[start : i+1]
				}
			}
		}
	}

	return ""
}
