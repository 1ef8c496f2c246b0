package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	file := filepath.Join(t.TempDir(), "nascdec.toml")
	require.NoError(t, os.WriteFile(file, []byte(content), 0o644))
	return file
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, filepath.Join("data", "gf"), cfg.ChronicleDir())
	assert.Equal(t, "handlers.json", cfg.SymbolFiles().Handlers)
	assert.True(t, cfg.IsIgnored("public_wyvern"))
	assert.False(t, cfg.IsIgnored("warrior"))
	assert.Positive(t, cfg.Run.Workers)
}

func TestLoadFile(t *testing.T) {
	file := writeConfig(t, `
[Data]
Dir = "/srv/l2"
Chronicle = "c4"

[Lifter]
IncrementWindow = 3

[Emitter]
UnprefixedDomains = ["PSTATE", "CATEGORY"]

[Run]
Encoding = "utf-8"
Workers = 4
Ignored = []
`)

	cfg, err := LoadFile(file)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join("/srv/l2", "c4"), cfg.ChronicleDir())
	assert.Equal(t, 3, cfg.Lifter.IncrementWindow)
	assert.Equal(t, []string{"PSTATE", "CATEGORY"}, cfg.Emitter.UnprefixedDomains)
	assert.Equal(t, EncodingUTF8, cfg.Run.Encoding)
	assert.Equal(t, 4, cfg.Run.Workers)
	assert.Empty(t, cfg.Run.Ignored)

	// untouched keys keep their defaults
	assert.Equal(t, "variables.json", cfg.Data.Variables)
	assert.Equal(t, "@", cfg.Emitter.ConstantPrefix)
	assert.Equal(t, "ai.obj", cfg.Run.Input)
}

func TestLoadFileErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errMsg  string
	}{
		{"unknown key", "[Run]\nThreads = 2\n", "field 'Threads' is not defined"},
		{"bad encoding", "[Run]\nEncoding = \"latin1\"\n", "unsupported encoding"},
		{"zero workers", "[Run]\nWorkers = 0\n", "Run.Workers must be positive"},
		{"bad window", "[Lifter]\nIncrementWindow = 0\n", "Lifter.IncrementWindow must be positive"},
		{"empty data file", "[Data]\nEnums = \"\"\n", "Data.Enums is empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFile(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}

	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.toml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadFileEmptyName(t *testing.T) {
	cfg, err := LoadFile("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestDumpLoads(t *testing.T) {
	cfg := Default()
	cfg.Run.Workers = 7
	cfg.Data.Chronicle = "interlude"

	var buf bytes.Buffer
	require.NoError(t, Dump(&buf, cfg))
	assert.Contains(t, buf.String(), "[Run]")

	loaded, err := LoadFile(writeConfig(t, buf.String()))
	require.NoError(t, err)
	assert.Equal(t, 7, loaded.Run.Workers)
	assert.Equal(t, "interlude", loaded.Data.Chronicle)
}
