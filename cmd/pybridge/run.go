package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/quailyard/pybridge/bridge"
)

var runCmd = &cobra.Command{
	Use:   "run <command> [args...]",
	Short: "Run a bundle command",
	Long: `Run a named command of the bundle and print its output.

Examples:
  pybridge --bundle wallpaperctl run status
  pybridge --bundle wallpaperctl run set-speed 1.5
  pybridge --bundle wallpaperctl run start --async

The process exits with the command's exit status.`,
	Args: cobra.MinimumNArgs(1),
	Run:  runRun,
}

func init() {
	runCmd.Flags().Bool("async", false, "Run asynchronously and wait for the callback")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) {
	async, _ := cmd.Flags().GetBool("async")

	session, err := openSession(cmd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer session.Close()

	command := args[0]
	cmdArgs := args[1:]

	var result bridge.Result
	if async {
		done := make(chan bridge.Result, 1)
		session.RunAsync(context.Background(), command, cmdArgs, func(res bridge.Result) {
			done <- res
		})
		result = <-done
	} else {
		result = session.Run(context.Background(), command, cmdArgs)
	}

	fmt.Print(result.Stdout)
	fmt.Fprint(os.Stderr, result.Stderr)

	if result.Err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", result.Err)
	}
	if result.Status != bridge.StatusOK {
		os.Exit(result.Status)
	}
	if result.Err != nil {
		os.Exit(1)
	}
}
