// Package source holds a decoded disassembly listing so diagnostics can
// quote the instruction line they refer to.
package source

import (
	"path/filepath"
	"strings"
)

// SourceFile is one listing after UTF-16 decoding. Line numbers handed out by
// the tokenizer index into it.
type SourceFile struct {
	Name    string // base name, or <stdin> / <memory>
	Path    string // empty unless read from disk
	Content string
	lines   []string
}

// NewStdinSource wraps a listing piped in on standard input.
func NewStdinSource(content string) *SourceFile {
	return &SourceFile{Name: "<stdin>", Content: content}
}

// NewMemorySource wraps a listing assembled in memory.
func NewMemorySource(content string) *SourceFile {
	return &SourceFile{Name: "<memory>", Content: content}
}

// FromFile wraps a listing read from path.
func FromFile(path, content string) *SourceFile {
	return &SourceFile{Name: filepath.Base(path), Path: path, Content: content}
}

// Lines splits the listing on LF. Windows line endings are normalized first
// because ai.obj dumps use CRLF.
func (sf *SourceFile) Lines() []string {
	if sf.lines == nil {
		sf.lines = strings.Split(strings.ReplaceAll(sf.Content, "\r\n", "\n"), "\n")
	}
	return sf.lines
}

// Line returns instruction line n (1-based). Out of range yields "".
func (sf *SourceFile) Line(n int) string {
	lines := sf.Lines()
	if n < 1 || n > len(lines) {
		return ""
	}
	return lines[n-1]
}

// DisplayPath names the listing in warnings and error reports.
func (sf *SourceFile) DisplayPath() string {
	if sf.Path == "" {
		return sf.Name
	}
	return sf.Path
}
