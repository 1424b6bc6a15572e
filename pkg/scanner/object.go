package scanner

// ExtractObject returns the first balanced '{' .. '}' region of payload.
// Braces inside JSON string literals (including escaped quotes) do not
// count toward balance. Returns false when no balanced region exists.
func ExtractObject(payload []byte) ([]byte, bool) {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(payload); i++ {
		b := payload[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case b == '\\':
				escaped = true
			case b == '"':
				inString = false
			}
			continue
		}

		switch b {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 {
				return payload[start : i+1], true
			}
		}
	}

	return nil, false
}

func IsSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

// TrimSpace narrows payload to its non-whitespace core.
func TrimSpace(payload []byte) []byte {
	lo, hi := 0, len(payload)
	for lo < hi && IsSpace(payload[lo]) {
		lo++
	}
	for hi > lo && IsSpace(payload[hi-1]) {
		hi--
	}
	return payload[lo:hi]
}
