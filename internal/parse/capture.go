package parse

// BlankComments returns the runes of src with the // and /* */ comments replaced by spaces,
// line feeds are kept so that offsets and line numbers are unchanged.
func BlankComments(src string) []rune {
	s := []rune(src)
	n := len32(s)

	for i := int32(0); i < n; i++ {
		switch r := s[i]; {
		case isQuote(r):
			i = skipString(s, i, n) - 1
		case r == '/' && i+1 < n && s[i+1] == '/':
			for i < n && s[i] != '\n' {
				s[i] = ' '
				i++
			}
		case r == '/' && i+1 < n && s[i+1] == '*':
			s[i], s[i+1] = ' ', ' '
			i += 2
			for i < n && !(s[i] == '*' && i+1 < n && s[i+1] == '/') {
				if s[i] != '\n' {
					s[i] = ' '
				}
				i++
			}
			if i < n {
				s[i], s[i+1] = ' ', ' '
				i++
			}
		}
	}
	return s
}

// skipString returns the index following the string literal starting at start, or end if the literal
// is not terminated.
func skipString(s []rune, start, end int32) int32 {
	quote := s[start]
	i := start + 1
	for i < end {
		switch s[i] {
		case '\\':
			i += 2
			continue
		case quote:
			return i + 1
		}
		i++
	}
	return end
}

// balancedEnd returns the index of the delimiter closing the one located at start, string literals
// are skipped. It returns -1 if the delimiter is not closed before end.
func balancedEnd(s []rune, start, end int32) int32 {
	var stack []rune
	for i := start; i < end; i++ {
		r := s[i]
		switch {
		case isQuote(r):
			next := skipString(s, i, end)
			if next == end && (next-1 <= i || s[next-1] != r) {
				return -1
			}
			i = next - 1
		case isOpeningDelim(r):
			stack = append(stack, closingDelimOf(r))
		case isClosingDelim(r):
			if len(stack) == 0 || stack[len(stack)-1] != r {
				return -1
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return i
			}
		}
	}
	return -1
}

// statementEnd returns the index of the first ';' located at depth 0 after start, or end.
func statementEnd(s []rune, start, end int32) int32 {
	for i := start; i < end; i++ {
		switch r := s[i]; {
		case isQuote(r):
			i = skipString(s, i, end) - 1
		case isOpeningDelim(r):
			closing := balancedEnd(s, i, end)
			if closing < 0 {
				return end
			}
			i = closing
		case isClosingDelim(r):
			return i
		case r == ';':
			return i
		}
	}
	return end
}

// splitTopLevel splits s[start:end] at the occurrences of sep located at depth 0.
func splitTopLevel(s []rune, start, end int32, sep rune) []NodeSpan {
	var spans []NodeSpan
	partStart := start
	for i := start; i < end; i++ {
		switch r := s[i]; {
		case isQuote(r):
			i = skipString(s, i, end) - 1
		case isOpeningDelim(r):
			closing := balancedEnd(s, i, end)
			if closing < 0 {
				i = end
				continue
			}
			i = closing
		case r == sep:
			spans = append(spans, NodeSpan{Start: partStart, End: i})
			partStart = i + 1
		}
	}
	return append(spans, NodeSpan{Start: partStart, End: end})
}

// trimSpan removes the leading and trailing spaces of a span.
func trimSpan(s []rune, span NodeSpan) NodeSpan {
	for span.Start < span.End && isSpace(s[span.Start]) {
		span.Start++
	}
	for span.End > span.Start && isSpace(s[span.End-1]) {
		span.End--
	}
	return span
}

func isBlank(s []rune, span NodeSpan) bool {
	return trimSpan(s, span).IsEmpty()
}
