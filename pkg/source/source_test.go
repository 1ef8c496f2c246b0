package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSourceFile(t *testing.T) {
	tests := []struct {
		name    string
		src     *SourceFile
		display string
	}{
		{"file", FromFile("/srv/l2/ai.obj", "class 0 npc : (null)\r\nhandler 2\r\n"), "/srv/l2/ai.obj"},
		{"stdin", NewStdinSource("class 0 npc : (null)\nhandler 2\n"), "<stdin>"},
		{"memory", NewMemorySource("class 0 npc : (null)\nhandler 2\n"), "<memory>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.display, tt.src.DisplayPath())
			assert.Equal(t, []string{"class 0 npc : (null)", "handler 2", ""}, tt.src.Lines())
			assert.Equal(t, "handler 2", tt.src.Line(2))
			assert.Empty(t, tt.src.Line(0))
			assert.Empty(t, tt.src.Line(4))
		})
	}
	assert.Equal(t, "ai.obj", FromFile("/srv/l2/ai.obj", "").Name)
}
