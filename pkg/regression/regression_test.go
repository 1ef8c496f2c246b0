package regression

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChecksum(t *testing.T) {
	assert.Equal(t, uint32(0), Checksum(""))
	// IEEE check value
	assert.Equal(t, uint32(0xcbf43926), Checksum("123456789"))
}

func TestGenerateLayout(t *testing.T) {
	var buf bytes.Buffer
	s := NewGenerator(&buf)

	status, err := s.Record("123456789")
	require.NoError(t, err)
	assert.Equal(t, StatusRecorded, status)
	require.NoError(t, s.Skip())

	assert.Equal(t, []byte{0x26, 0x39, 0xf4, 0xcb, 0, 0, 0, 0}, buf.Bytes())
	assert.Equal(t, 2, s.Count())
}

func TestGenerateThenTest(t *testing.T) {
	classes := []string{"class a {\n}\n", "class b {\n}\n", "class c {\n}\n"}

	var buf bytes.Buffer
	gen := NewGenerator(&buf)
	for _, code := range classes {
		_, err := gen.Record(code)
		require.NoError(t, err)
	}

	tester := NewTester(bytes.NewReader(buf.Bytes()))
	tests := []struct {
		code string
		want Status
	}{
		{classes[0], StatusPassed},
		{"class b {\n\tchanged;\n}\n", StatusFailed},
		{classes[2], StatusPassed},
		{classes[0], StatusFailed}, // past the end of the fixture
	}
	for _, tt := range tests {
		status, err := tester.Record(tt.code)
		require.NoError(t, err)
		assert.Equal(t, tt.want, status)
	}
}

func TestOpen(t *testing.T) {
	path := FixturePath(filepath.Join(t.TempDir(), "tests"), "gf")
	assert.Equal(t, "gf.bin", filepath.Base(path))

	_, err := Open(path, ModeTest)
	assert.ErrorIs(t, err, os.ErrNotExist)

	gen, err := Open(path, ModeGenerate)
	require.NoError(t, err)
	assert.Equal(t, ModeGenerate, gen.Mode())
	_, err = gen.Record("x")
	require.NoError(t, err)
	require.NoError(t, gen.Close())

	// generating again truncates
	gen, err = Open(path, ModeGenerate)
	require.NoError(t, err)
	require.NoError(t, gen.Skip())
	require.NoError(t, gen.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, data, 4)

	tester, err := Open(path, ModeTest)
	require.NoError(t, err)
	defer tester.Close()
	status, err := tester.Record("")
	require.NoError(t, err)
	assert.Equal(t, StatusPassed, status)
}
