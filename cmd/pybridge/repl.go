package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Interactive shell against a persistent session",
	Long: `Start an interactive shell for running bundle commands.

Each line is a command name followed by its arguments:
  status
  set-speed 1.5

Built-ins:
  commands        List the bundle's commands
  settings        Show the current settings
  exit / quit     End the session (or press Ctrl+D)

Features:
  - Command history (up/down arrows)
  - Line editing (left/right, backspace, delete)
  - History search (Ctrl+R)`,
	Args: cobra.NoArgs,
	Run:  runRepl,
}

func init() {
	replCmd.Flags().String("history", "", "History file path (default: ~/.pybridge_history)")
	rootCmd.AddCommand(replCmd)
}

func runRepl(cmd *cobra.Command, args []string) {
	historyFile, _ := cmd.Flags().GetString("history")
	if historyFile == "" {
		home, _ := os.UserHomeDir()
		historyFile = filepath.Join(home, ".pybridge_history")
	}

	session, err := openSession(cmd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer session.Close()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:            session.Name() + "> ",
		HistoryFile:       historyFile,
		HistoryLimit:      1000,
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing readline: %v\n", err)
		os.Exit(1)
	}
	defer rl.Close()

	fmt.Fprintf(os.Stderr, "pybridge %s (type 'exit' to quit, Ctrl+D to exit)\n", session.Name())

	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			if err == io.EOF {
				fmt.Println()
				break
			}
			fmt.Fprintf(os.Stderr, "Error reading input: %v\n", err)
			break
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}

		fields := strings.Fields(line)
		command, cmdArgs := fields[0], fields[1:]

		switch command {
		case "commands":
			for _, name := range session.Commands() {
				fmt.Println(name)
			}
			continue
		case "settings":
			for key, value := range session.Settings().Snapshot() {
				fmt.Printf("%s=%s\n", key, value)
			}
			continue
		}

		result := session.Run(context.Background(), command, cmdArgs)
		if result.Stdout != "" {
			fmt.Print(result.Stdout)
			if !strings.HasSuffix(result.Stdout, "\n") {
				fmt.Println()
			}
		}
		if result.Stderr != "" {
			fmt.Fprint(os.Stderr, result.Stderr)
		}
		if result.Err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", result.Err)
		}
	}
}
