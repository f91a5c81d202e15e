package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/assistly/billing/internal/config"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
)

// Version is set at build time with -ldflags
var Version = "dev"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func init() {
	time.Local = time.UTC
}

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. Commands run offline against the configured price table.
func newRootCmd(out io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "billingctl",
		Short:         "Offline tools for proration and coupon calculations",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)

	var cfg *config.Configuration
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		c, err := config.NewConfig()
		if err != nil {
			return err
		}
		cfg = c
		return nil
	}
	loadConfig := func() *config.Configuration { return cfg }

	root.AddCommand(
		newProrationCmd(loadConfig),
		newCouponCmd(),
	)
	return root
}

// printJSON writes v indented to the command's output
func printJSON(cmd *cobra.Command, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(b))
	return err
}
