// Command nascdec decompiles NASC AI bytecode listings back to source.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/golang/glog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	Version = "dev"
	Commit  = "none"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "nascdec",
	Short: "Decompile NASC AI bytecode listings",
	Long: `nascdec lifts the compiled AI listing (ai.obj) of a chronicle back to
NASC source, one class at a time, resolving ids through the chronicle's
symbol files.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// glog reads its flags from the go flag set; cobra already filled them
		return flag.CommandLine.Parse(nil)
	},
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "TOML configuration file")
	pflag.CommandLine.AddGoFlagSet(flag.CommandLine)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	glog.Flush()

	if err != nil {
		fmt.Fprintf(os.Stderr, "nascdec: %v\n", err)
		os.Exit(70) // Exit code 70: internal software error
	}
}
