// Package cmd provides the command-line interface of fifoctl.
package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "fifoctl",
		Short: "fifoctl brings up and inspects DMA FIFO blocks.",
		Long: `fifoctl brings up DMA FIFO blocks on simulated hardware, runs ` +
			`their self-tests and optionally serves them for monitoring. ` +
			`Settings can also come from FIFOCTL_* variables in the ` +
			`environment or in a .env file.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			envFile, _ := cmd.Flags().GetString("env-file")
			return loadEnv(envFile)
		},
	}

	rootCmd.PersistentFlags().String("env-file", ".env",
		"File with FIFOCTL_* settings. A missing file is ignored.")

	rootCmd.AddCommand(newBringUpCmd())

	return rootCmd
}

func loadEnv(envFile string) error {
	if envFile == "" {
		return nil
	}

	err := godotenv.Load(envFile)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	return err
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	err := newRootCmd().Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		atexit.Exit(1)
	}

	atexit.Exit(0)
}
