package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:           "xdrctl",
		Short:         "Run Cortex XDR response commands from the shell",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	rootCmd.PersistentFlags().String("config", os.Getenv("XDR_CONFIG"), "Path to the YAML config file")
	rootCmd.PersistentFlags().StringP("output", "o", "text", "Output format: text, json or yaml")
	rootCmd.PersistentFlags().String("log-level", "warn", "Log level")

	rootCmd.AddCommand(
		runCmd(),
		commandsCmd(),
		testCmd(),
		fetchCmd(),
		remoteDataCmd(),
		mappingFieldsCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
