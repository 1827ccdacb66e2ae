package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Browse past interactions",
	}

	var limit int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List recent interactions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(func(app application) error {
				interactions, err := app.History.Recent(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if len(interactions) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "no interactions logged yet")
					return nil
				}
				for _, in := range interactions {
					marker := " "
					if in.Copied {
						marker = "*"
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%4d %s %s  %s\n",
						in.ID, marker, in.CreatedAt.Local().Format("2006-01-02 15:04"), in.Prompt)
					fmt.Fprintf(cmd.OutOrStdout(), "       -> %s\n", in.Response)
				}
				return nil
			})
		},
	}
	listCmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of interactions to show")

	showCmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one interaction in full",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid interaction id %q", args[0])
			}
			return runApp(func(app application) error {
				in, err := app.History.ByID(cmd.Context(), id)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "ID:      %d\n", in.ID)
				fmt.Fprintf(out, "Time:    %s\n", in.CreatedAt.Local().Format(time.RFC1123))
				fmt.Fprintf(out, "Model:   %s\n", in.Model)
				fmt.Fprintf(out, "Copied:  %t\n", in.Copied)
				fmt.Fprintf(out, "Prompt:  %s\n", in.Prompt)
				fmt.Fprintf(out, "Answer:  %s\n", in.Response)
				return nil
			})
		},
	}

	copiedCmd := &cobra.Command{
		Use:   "copied <id>",
		Short: "Mark an interaction's answer as copied",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid interaction id %q", args[0])
			}
			return runApp(func(app application) error {
				if err := app.History.MarkCopied(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "marked %d as copied\n", id)
				return nil
			})
		},
	}

	cmd.AddCommand(listCmd, showCmd, copiedCmd)
	return cmd
}
