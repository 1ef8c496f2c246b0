package parser

import "strings"

// Indent re-indents generated source with tabs. Depth follows lines ending
// in "{" or ":" and lines starting with "}" or ending with ":" step back.
// A blank line separates a closing brace from what follows it and precedes
// an opening line that does not directly follow another opening line.
func Indent(text string) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines)+len(lines)/4)
	depth := 0
	prevLast := byte(0)

	for _, line := range lines {
		first, last := firstByte(line), lastByte(line)

		if first == '}' || last == ':' {
			depth--
		}
		if last != ':' && first != '}' &&
			(prevLast == '}' || last == '{' && prevLast != 0 && prevLast != '{' && prevLast != ':') {
			out = append(out, "")
		}
		out = append(out, strings.Repeat("\t", max(depth, 0))+line)
		if last == '{' || last == ':' {
			depth++
		}
		prevLast = last
	}
	return strings.Join(out, "\n") + "\n"
}

func firstByte(s string) byte {
	if s == "" {
		return 0
	}
	return s[0]
}

func lastByte(s string) byte {
	if s == "" {
		return 0
	}
	return s[len(s)-1]
}
