package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/quailyard/pybridge/bundle"
)

var commandsCmd = &cobra.Command{
	Use:   "commands",
	Short: "List the bundle's commands",
	Long:  `List the commands declared in the bundle manifest, one per line.`,
	Args:  cobra.NoArgs,
	Run:   runCommands,
}

func init() {
	rootCmd.AddCommand(commandsCmd)
}

func runCommands(cmd *cobra.Command, args []string) {
	cfgFile, _ := cmd.Flags().GetString("config")
	v, err := loadConfig(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	resource, err := resolveBundle(cmd, v)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Listing only needs the manifest, not a compiled interpreter.
	b, err := bundle.Open(resource)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	for _, name := range b.Commands() {
		fmt.Println(name)
	}
}
