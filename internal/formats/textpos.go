package formats

// LineCol converts a 0-based byte offset into 1-indexed line and column
// numbers. Offsets past the end of content resolve to the last
// position. Columns count bytes, which matches how the underlying
// decoders report offsets.
func LineCol(content string, offset int) (line, col int) {
	if offset < 0 {
		offset = 0
	}
	if offset > len(content) {
		offset = len(content)
	}
	line, col = 1, 1
	for i := 0; i < offset; i++ {
		if content[i] == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return line, col
}

// LineStart returns the 0-based byte offset of the first character of
// the given 1-indexed line, or -1 when the line does not exist.
func LineStart(content string, line int) int {
	if line < 1 {
		return -1
	}
	if line == 1 {
		return 0
	}
	n := 1
	for i := 0; i < len(content); i++ {
		if content[i] == '\n' {
			n++
			if n == line {
				return i + 1
			}
		}
	}
	return -1
}
