package extractor

import "strings"

// scrub returns a copy of a doc-comment's text with every comment-marker
// byte (`///`, `//`, `/*`, `*/`, a line's leading `*` decoration) replaced
// by a space. The result has the same length as the input, so offsets into
// the scrubbed text are offsets into the original comment — the extractor
// records byte ranges without any offset bookkeeping per line.
func scrub(text string) string {
	b := []byte(text)
	lineStart := 0
	for lineStart <= len(b) {
		lineEnd := lineStart
		for lineEnd < len(b) && b[lineEnd] != '\n' {
			lineEnd++
		}

		i := lineStart
		for i < lineEnd && (b[i] == ' ' || b[i] == '\t') {
			i++
		}
		// leading marker: any run of '/' and '*' characters
		if i < lineEnd && (b[i] == '/' || b[i] == '*') {
			for i < lineEnd && (b[i] == '/' || b[i] == '*') {
				b[i] = ' '
				i++
			}
		}
		// trailing close marker
		trimmed := strings.TrimRight(string(b[lineStart:lineEnd]), " \t")
		if strings.HasSuffix(trimmed, "*/") {
			end := lineStart + len(trimmed)
			b[end-1] = ' '
			b[end-2] = ' '
		}

		lineStart = lineEnd + 1
	}
	return string(b)
}

// blankLineAfter reports the offset of the first blank (all-space) line
// boundary in scrubbed strictly after from, or len(scrubbed) if none. The
// returned offset is the start of the blank line, i.e. where an annotation
// body must stop.
func blankLineAfter(scrubbed string, from int) int {
	lineStart := from
	// move to the start of the next line
	for lineStart < len(scrubbed) && scrubbed[lineStart] != '\n' {
		lineStart++
	}
	lineStart++
	for lineStart < len(scrubbed) {
		lineEnd := lineStart
		blank := true
		for lineEnd < len(scrubbed) && scrubbed[lineEnd] != '\n' {
			if scrubbed[lineEnd] != ' ' && scrubbed[lineEnd] != '\t' {
				blank = false
			}
			lineEnd++
		}
		if blank {
			return lineStart
		}
		lineStart = lineEnd + 1
	}
	return len(scrubbed)
}

var introducers = []string{"if_succeeds", "invariant", "define"}

// introducerAt reports whether scrubbed[i] starts a '#'-introducer.
func introducerAt(scrubbed string, i int) bool {
	if scrubbed[i] != '#' {
		return false
	}
	rest := scrubbed[i+1:]
	for _, kw := range introducers {
		if strings.HasPrefix(rest, kw) {
			// keyword must not run into a longer identifier
			if len(rest) == len(kw) || !isIdentByte(rest[len(kw)]) {
				return true
			}
		}
	}
	return false
}

func isIdentByte(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// precedingComment scans raw source backwards from declOffset for the
// comment block immediately preceding the declaration — the fallback when
// the host AST carries no structured documentation child (
// "Doc-comment attachment heuristics").
func precedingComment(src []byte, declOffset int) (text string, base int, ok bool) {
	end := declOffset
	for end > 0 && (src[end-1] == ' ' || src[end-1] == '\t' || src[end-1] == '\n' || src[end-1] == '\r') {
		end--
	}
	if end == 0 {
		return "", 0, false
	}

	// block comment ending right before the declaration
	if end >= 2 && src[end-2] == '*' && src[end-1] == '/' {
		start := strings.LastIndex(string(src[:end-2]), "/*")
		if start < 0 {
			return "", 0, false
		}
		return string(src[start:end]), start, true
	}

	// a run of consecutive //-comment lines
	lineEnd := end
	start := -1
	for {
		lineStart := lineEnd
		for lineStart > 0 && src[lineStart-1] != '\n' {
			lineStart--
		}
		content := strings.TrimLeft(string(src[lineStart:lineEnd]), " \t")
		if !strings.HasPrefix(content, "//") {
			break
		}
		start = lineStart + (lineEnd - lineStart - len(content))
		if lineStart == 0 {
			break
		}
		lineEnd = lineStart - 1
		for lineEnd > 0 && (src[lineEnd-1] == ' ' || src[lineEnd-1] == '\t' || src[lineEnd-1] == '\r') {
			lineEnd--
		}
	}
	if start < 0 {
		return "", 0, false
	}
	return string(src[start:end]), start, true
}
