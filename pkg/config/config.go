// Package config holds the decompiler settings, loaded from a TOML file on
// top of built-in defaults.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"runtime"

	"github.com/naoina/toml"

	"nascdec/pkg/symbols"
)

// Output encodings.
const (
	EncodingUTF16LE = "utf-16le"
	EncodingUTF8    = "utf-8"
)

// These settings ensure that TOML keys use the same names as Go struct fields.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string {
		return key
	},
	FieldToKey: func(rt reflect.Type, field string) string {
		return field
	},
	MissingField: func(rt reflect.Type, field string) error {
		return fmt.Errorf("field '%s' is not defined in %s", field, rt.String())
	},
}

// DataConfig locates the symbol database.
type DataConfig struct {
	Dir       string
	Chronicle string // Subdirectory of Dir holding one chronicle's files
	Handlers  string
	Variables string
	Functions string
	Enums     string
	FString   string `toml:",omitempty"`
}

// LifterConfig tunes the bytecode lifter.
type LifterConfig struct {
	IncrementWindow int
}

// EmitterConfig selects dialect details of the generated source.
type EmitterConfig struct {
	ImplicitReceivers []string
	ConstantPrefix    string
	UnprefixedDomains []string
}

// RunConfig describes one decompilation run.
type RunConfig struct {
	Input    string
	Output   string
	Encoding string
	Workers  int
	Ignored  []string
	Fixtures string
}

// Config is the complete decompiler configuration.
type Config struct {
	Data    DataConfig
	Lifter  LifterConfig
	Emitter EmitterConfig
	Run     RunConfig
}

// Default returns the built-in settings.
func Default() Config {
	files := symbols.DefaultFiles()
	return Config{
		Data: DataConfig{
			Dir:       "data",
			Chronicle: "gf",
			Handlers:  files.Handlers,
			Variables: files.Variables,
			Functions: files.Functions,
			Enums:     files.Enums,
			FString:   files.FString,
		},
		Lifter: LifterConfig{IncrementWindow: 2},
		Emitter: EmitterConfig{
			ImplicitReceivers: []string{"myself", "gg"},
			ConstantPrefix:    "@",
			UnprefixedDomains: []string{"PSTATE"},
		},
		Run: RunConfig{
			Input:    "ai.obj",
			Output:   "ai.nasc",
			Encoding: EncodingUTF16LE,
			Workers:  runtime.NumCPU(),
			Ignored:  []string{"guild_master_test_helper1", "public_wyvern"},
			Fixtures: "tests",
		},
	}
}

// Load decodes file over cfg. Keys missing from the file keep their
// current values; unknown keys are errors.
func Load(file string, cfg *Config) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	err = tomlSettings.NewDecoder(bufio.NewReader(f)).Decode(cfg)
	// Add file name to errors that have a line number.
	if _, ok := err.(*toml.LineError); ok {
		err = errors.New(file + ", " + err.Error())
	}
	if err != nil {
		return err
	}
	return cfg.Validate()
}

// LoadFile returns the defaults overridden by file. An empty file name
// yields the defaults.
func LoadFile(file string) (Config, error) {
	cfg := Default()
	if file == "" {
		return cfg, nil
	}
	err := Load(file, &cfg)
	return cfg, err
}

// Dump writes cfg as TOML.
func Dump(w io.Writer, cfg Config) error {
	out, err := tomlSettings.Marshal(&cfg)
	if err != nil {
		return err
	}
	_, err = w.Write(out)
	return err
}

// Validate rejects settings the driver cannot run with.
func (c *Config) Validate() error {
	switch c.Run.Encoding {
	case EncodingUTF16LE, EncodingUTF8:
	default:
		return fmt.Errorf("unsupported encoding %q (want %s or %s)", c.Run.Encoding, EncodingUTF16LE, EncodingUTF8)
	}
	if c.Run.Workers < 1 {
		return fmt.Errorf("Run.Workers must be positive, got %d", c.Run.Workers)
	}
	if c.Lifter.IncrementWindow < 1 {
		return fmt.Errorf("Lifter.IncrementWindow must be positive, got %d", c.Lifter.IncrementWindow)
	}
	for name, file := range map[string]string{
		"Handlers":  c.Data.Handlers,
		"Variables": c.Data.Variables,
		"Functions": c.Data.Functions,
		"Enums":     c.Data.Enums,
	} {
		if file == "" {
			return fmt.Errorf("Data.%s is empty", name)
		}
	}
	return nil
}

// ChronicleDir is the directory the symbol files are read from.
func (c *Config) ChronicleDir() string {
	return filepath.Join(c.Data.Dir, c.Data.Chronicle)
}

// SymbolFiles returns the symbol file names relative to ChronicleDir.
func (c *Config) SymbolFiles() symbols.Files {
	return symbols.Files{
		Handlers:  c.Data.Handlers,
		Variables: c.Data.Variables,
		Functions: c.Data.Functions,
		Enums:     c.Data.Enums,
		FString:   c.Data.FString,
	}
}

// IsIgnored reports whether a class is skipped by the driver.
func (c *Config) IsIgnored(class string) bool {
	for _, name := range c.Run.Ignored {
		if name == class {
			return true
		}
	}
	return false
}
