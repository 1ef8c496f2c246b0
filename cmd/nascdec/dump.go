package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"nascdec/pkg/config"
	"nascdec/pkg/driver"
	"nascdec/pkg/errors"
	"nascdec/pkg/parser"
	"nascdec/pkg/symbols"
)

var showCode bool

var dumpCmd = &cobra.Command{
	Use:   "dump <class>",
	Short: "Print the lifted syntax tree of one class",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		db, err := symbols.Open(cfg.ChronicleDir(), cfg.SymbolFiles())
		if err != nil {
			return fmt.Errorf("load chronicle %s: %w", cfg.ChronicleDir(), err)
		}
		src, err := driver.ReadListing(cfg.Run.Input)
		if err != nil {
			return err
		}
		listing, err := driver.FindClass(src, args[0])
		if err != nil {
			return err
		}

		opts := driver.OptionsFromConfig(&cfg)
		opts.Lifter = append(opts.Lifter, parser.WithSource(src))
		class, code, derr := driver.DecompileClass(db, listing, opts)
		if derr != nil {
			errors.DisplayErrors(cmd.ErrOrStderr(), []errors.DecompileError{derr})
			return fmt.Errorf("decompile %s failed", args[0])
		}

		out := cmd.OutOrStdout()
		fmt.Fprint(out, parser.Dump(class))
		if showCode {
			fmt.Fprintln(out)
			fmt.Fprint(out, code)
		}
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration as TOML",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		return config.Dump(cmd.OutOrStdout(), cfg)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "nascdec %s (%s)\n", Version, Commit)
	},
}

func init() {
	addRunFlags(dumpCmd)
	dumpCmd.Flags().BoolVar(&showCode, "code", false, "also print the generated source")
	addRunFlags(configCmd)

	rootCmd.AddCommand(dumpCmd, configCmd, versionCmd)
}
