package main

import (
	"fmt"
	"io"
	"os"

	"github.com/golang/glog"
	"github.com/spf13/cobra"

	"nascdec/pkg/config"
	"nascdec/pkg/driver"
	"nascdec/pkg/regression"
	"nascdec/pkg/symbols"
)

// Flags shared by decompile, test and generate.
var (
	inputFile  string
	outputFile string
	chronicle  string
	workers    int
	utf8Output bool
)

var decompileCmd = &cobra.Command{
	Use:   "decompile",
	Short: "Decompile the listing into NASC source",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, nil)
	},
}

var testCmd = &cobra.Command{
	Use:   "test <fixture>",
	Short: "Decompile and compare every class against a checksum fixture",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRegression(cmd, args[0], regression.ModeTest)
	},
}

var generateCmd = &cobra.Command{
	Use:   "generate <fixture>",
	Short: "Decompile and record a checksum fixture",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRegression(cmd, args[0], regression.ModeGenerate)
	},
}

func init() {
	for _, cmd := range []*cobra.Command{decompileCmd, testCmd, generateCmd} {
		addRunFlags(cmd)
		rootCmd.AddCommand(cmd)
	}
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&inputFile, "input", "i", "", "listing to decompile, - for stdin (default from config)")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "generated source file (default from config)")
	cmd.Flags().StringVar(&chronicle, "chronicle", "", "chronicle subdirectory of the data dir")
	cmd.Flags().IntVar(&workers, "workers", 0, "number of classes decompiled in parallel")
	cmd.Flags().BoolVar(&utf8Output, "utf8", false, "write UTF-8 instead of UTF-16LE")
}

// loadConfig reads --config and applies the command line overrides.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.LoadFile(configFile)
	if err != nil {
		return cfg, err
	}

	flags := cmd.Flags()
	if flags.Changed("input") {
		cfg.Run.Input = inputFile
	}
	if flags.Changed("output") {
		cfg.Run.Output = outputFile
	}
	if flags.Changed("chronicle") {
		cfg.Data.Chronicle = chronicle
	}
	if flags.Changed("workers") {
		cfg.Run.Workers = workers
	}
	if utf8Output {
		cfg.Run.Encoding = config.EncodingUTF8
	}
	return cfg, cfg.Validate()
}

func runRegression(cmd *cobra.Command, name string, mode regression.Mode) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	store, err := regression.Open(regression.FixturePath(cfg.Run.Fixtures, name), mode)
	if err != nil {
		return err
	}
	defer store.Close()

	return run(cmd, store)
}

func run(cmd *cobra.Command, store *regression.Store) error {
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

	out, err := os.Create(cfg.Run.Output)
	if err != nil {
		return err
	}
	defer out.Close()

	glog.Infof("decompiling %s into %s with %d workers", src.DisplayPath(), cfg.Run.Output, cfg.Run.Workers)
	d := driver.New(cfg, db)
	d.Regression = store
	report, err := d.Decompile(cmd.Context(), src, out)

	stdout := cmd.OutOrStdout()
	if report != nil {
		report.PrintClasses(stdout)
		fmt.Fprintln(stdout)
		report.PrintSummary(stdout)
	}
	if err != nil {
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}

	if store == nil || store.Mode() != regression.ModeTest {
		fmt.Fprintln(stdout, "\nDone!")
		return nil
	}
	return printFailedTests(stdout, report)
}

func printFailedTests(w io.Writer, report *driver.Report) error {
	failed := report.Failed()
	if len(failed) > 0 {
		fmt.Fprint(w, "\nFailed tests:\n\n")
		for _, c := range failed {
			fmt.Fprintln(w, c.Name)
		}
	}
	fmt.Fprintln(w, "\nDone!")

	if len(failed) > 0 {
		return fmt.Errorf("%d of %d classes failed", len(failed), len(report.Classes))
	}
	return nil
}
