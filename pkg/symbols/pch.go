package symbols

import (
	"bufio"
	"fmt"
	"io/fs"
	"strings"

	"github.com/dlclark/regexp2"

	"nascdec/pkg/lexer"
)

// loadPCH reads a precompiled header file ("[name] = id" rows) and sorts its
// constants into the domains sharing the file. The first domain whose
// pattern matches wins.
func loadPCH(fsys fs.FS, file string, sources []pchSource) (map[string]map[int]string, error) {
	matchers := make([]*regexp2.Regexp, len(sources))
	result := make(map[string]map[int]string, len(sources))
	for i, src := range sources {
		result[src.domain] = make(map[int]string)
		if src.pattern == "" {
			continue
		}
		re, err := regexp2.Compile(PatternToRegex(src.pattern), regexp2.None)
		if err != nil {
			return nil, fmt.Errorf("%s: domain %s: pattern %q: %w", file, src.domain, src.pattern, err)
		}
		matchers[i] = re
	}

	f, err := fsys.Open(file)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", file, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		name, id, ok := parsePCHLine(scanner.Text())
		if !ok {
			continue
		}
		for i, src := range sources {
			if matchers[i] != nil {
				matched, err := matchers[i].MatchString(name)
				if err != nil {
					return nil, fmt.Errorf("%s: match %s: %w", file, name, err)
				}
				if !matched {
					continue
				}
			}
			result[src.domain][id] = name
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", file, err)
	}
	return result, nil
}

// parsePCHLine parses "[name] = 12", "[name] 0x0C" or "[name] = 12 // note".
func parsePCHLine(line string) (string, int, bool) {
	line = lexer.Sanitize(line)
	if !strings.HasPrefix(line, "[") {
		return "", 0, false
	}
	if i := strings.Index(line, "//"); i >= 0 {
		line = strings.TrimSpace(line[:i])
	}

	var constant, value string
	if i := strings.IndexByte(line, '='); i >= 0 {
		constant = strings.TrimSpace(line[:i])
		value = strings.TrimSpace(line[i+1:])
	} else {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return "", 0, false
		}
		constant, value = fields[0], fields[1]
	}

	id, err := lexer.ParseInt(value)
	if err != nil {
		return "", 0, false
	}
	return strings.Trim(constant, "[]"), id, true
}

// PatternToRegex converts a glob alternation ("npc_*|*_boss|gm") into an
// anchored regular expression. Each alternative is anchored at the ends that
// do not carry a wildcard.
func PatternToRegex(pattern string) string {
	parts := strings.Split(pattern, "|")
	for i, part := range parts {
		pieces := strings.Split(part, "*")
		for j, piece := range pieces {
			pieces[j] = regexp2.Escape(piece)
		}
		regex := strings.Join(pieces, "(.*)")
		if !strings.HasPrefix(part, "*") {
			regex = "^" + regex
		}
		if !strings.HasSuffix(part, "*") {
			regex += "$"
		}
		parts[i] = regex
	}
	return strings.Join(parts, "|")
}
