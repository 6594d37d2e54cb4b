package parse

import "unicode"

func isAlpha(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isDecDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func isHexDigit(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}

func isOctalDigit(r rune) bool {
	return r >= '0' && r <= '7'
}

func IsIdentChar(r rune) bool {
	return isAlpha(r) || isDecDigit(r) || r == '_' || r == '$' || r > 0x7f && unicode.IsLetter(r)
}

func IsFirstIdentChar(r rune) bool {
	return isAlpha(r) || r == '_' || r == '$' || r > 0x7f && unicode.IsLetter(r)
}

func isSpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', '\f', '\v':
		return true
	}
	return false
}

func isOpeningDelim(r rune) bool {
	switch r {
	case '(', '[', '{':
		return true
	}
	return false
}

func isClosingDelim(r rune) bool {
	switch r {
	case ')', ']', '}':
		return true
	}
	return false
}

func closingDelimOf(r rune) rune {
	switch r {
	case '(':
		return ')'
	case '[':
		return ']'
	case '{':
		return '}'
	}
	return 0
}

func isQuote(r rune) bool {
	return r == '"' || r == '\''
}

// isOperatorChar reports whether r can start a symbolic operator.
func isOperatorChar(r rune) bool {
	switch r {
	case '+', '-', '*', '/', '%', '#', '&', '|', '^', '<', '>', '=', '!', '~', '?', ':':
		return true
	}
	return false
}

func len32[E any](s []E) int32 {
	return int32(len(s))
}
