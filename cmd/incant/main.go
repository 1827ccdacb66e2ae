package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/davidbz/incant/internal/config"
)

var version = "dev"

var (
	configPath string
	verbose    bool
)

func main() {
	root := &cobra.Command{
		Use:     "incant",
		Short:   "incant turns natural-language requests into shell commands",
		Version: version,
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath(), "path to config file")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newAskCmd(),
		newCacheCmd(),
		newHistoryCmd(),
	)

	// A bare query runs the ask command, so `incant "list files"` works.
	if len(os.Args) > 1 && !strings.HasPrefix(os.Args[1], "-") && !knownCommand(root, os.Args[1]) {
		root.SetArgs(append([]string{"ask"}, os.Args[1:]...))
	}

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func knownCommand(root *cobra.Command, name string) bool {
	if name == "help" || name == "completion" {
		return true
	}
	for _, cmd := range root.Commands() {
		if cmd.Name() == name {
			return true
		}
		for _, alias := range cmd.Aliases {
			if alias == name {
				return true
			}
		}
	}
	return false
}
