package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nascdec/pkg/config"
)

const testListing = "class 0 npc_a : (null)\n" +
	"handler 2\n" +
	"push_event\npush_const 0\nadd\nfetch_i\nfunc_call 101\nshift_sp -1\n" +
	"handler_end\n" +
	"class_end\n"

const npcA = "set_compiler_opt base_event_type(@NTYPE_NPC_EVENT)\n\n" +
	"class npc_a {\n" +
	"handler:\n" +
	"\tEventHandler CREATED() {\n" +
	"\t\tDespawn();\n" +
	"\t}\n" +
	"}\n\n"

// workspace lays out a data dir, a listing and a config pointing at them.
func workspace(t *testing.T) (dir, cfgFile string) {
	t.Helper()
	dir = t.TempDir()
	chronicle := filepath.Join(dir, "data", "gf")
	require.NoError(t, os.MkdirAll(chronicle, 0o755))

	files := map[string]string{
		"handlers.json":  `{"0": {"2": "CREATED"}}`,
		"variables.json": `{"0": {"_": {"0": {"name": "myself", "type": "NpcMaker"}}}}`,
		"functions.json": `{"101": {"name": "Despawn", "type": "void", "arguments": []}}`,
		"enums.json":     `{"PSTATE": {"0": "IDLE"}}`,
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(chronicle, name), []byte(content), 0o644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ai.obj"), []byte(testListing), 0o644))

	cfg := config.Default()
	cfg.Data.Dir = filepath.Join(dir, "data")
	cfg.Run.Input = filepath.Join(dir, "ai.obj")
	cfg.Run.Output = filepath.Join(dir, "ai.nasc")
	cfg.Run.Fixtures = filepath.Join(dir, "tests")
	cfg.Run.Workers = 2

	var buf bytes.Buffer
	require.NoError(t, config.Dump(&buf, cfg))
	cfgFile = filepath.Join(dir, "nascdec.toml")
	require.NoError(t, os.WriteFile(cfgFile, buf.Bytes(), 0o644))
	return dir, cfgFile
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	color.NoColor = true
	utf8Output = false

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestDecompileCommand(t *testing.T) {
	dir, cfgFile := workspace(t)

	out, err := execute(t, "decompile", "-c", cfgFile, "--utf8")
	require.NoError(t, err)
	assert.Contains(t, out, "Decompile npc_a\n")
	assert.Contains(t, out, "1 classes: 1 ok, 0 failed, 0 ignored")
	assert.Contains(t, out, "Done!")

	data, err := os.ReadFile(filepath.Join(dir, "ai.nasc"))
	require.NoError(t, err)
	assert.Equal(t, npcA, string(data))
}

func TestRegressionCommands(t *testing.T) {
	dir, cfgFile := workspace(t)

	_, err := execute(t, "generate", "smoke", "-c", cfgFile)
	require.NoError(t, err)
	fixture, err := os.ReadFile(filepath.Join(dir, "tests", "smoke.bin"))
	require.NoError(t, err)
	assert.Len(t, fixture, 4)

	out, err := execute(t, "test", "smoke", "-c", cfgFile)
	require.NoError(t, err)
	assert.Contains(t, out, "Decompile npc_a - PASSED")

	// UTF-16 output is checksummed before encoding, so the fixture still matches
	out, err = execute(t, "test", "smoke", "-c", cfgFile, "--utf8")
	require.NoError(t, err)
	assert.NotContains(t, out, "Failed tests")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "tests", "smoke.bin"), []byte{1, 2, 3, 4}, 0o644))
	out, err = execute(t, "test", "smoke", "-c", cfgFile)
	assert.ErrorContains(t, err, "1 of 1 classes failed")
	assert.Contains(t, out, "Failed tests:\n\nnpc_a\n")

	_, err = execute(t, "test", "missing", "-c", cfgFile)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestDumpCommand(t *testing.T) {
	_, cfgFile := workspace(t)

	out, err := execute(t, "dump", "npc_a", "-c", cfgFile, "--code")
	require.NoError(t, err)
	assert.Contains(t, out, "npc_a")
	assert.Contains(t, out, "CREATED")
	assert.Contains(t, out, npcA)

	_, err = execute(t, "dump", "nobody", "-c", cfgFile)
	assert.ErrorContains(t, err, `class "nobody" not found`)
}

func TestConfigCommand(t *testing.T) {
	dir, cfgFile := workspace(t)

	out, err := execute(t, "config", "-c", cfgFile, "--workers", "5", "--chronicle", "c4")
	require.NoError(t, err)

	dumped := filepath.Join(dir, "dumped.toml")
	require.NoError(t, os.WriteFile(dumped, []byte(out), 0o644))
	cfg, err := config.LoadFile(dumped)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Run.Workers)
	assert.Equal(t, "c4", cfg.Data.Chronicle)
	assert.Equal(t, filepath.Join(dir, "ai.obj"), cfg.Run.Input)
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "nascdec dev (none)\n", out)
}
