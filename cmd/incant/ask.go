package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/davidbz/incant/internal/observability"
	"github.com/davidbz/incant/internal/session"
)

func newAskCmd() *cobra.Command {
	var (
		noCache      bool
		refresh      bool
		contextDepth int
	)

	cmd := &cobra.Command{
		Use:   "ask <query>...",
		Short: "Translate a natural-language request into a shell command",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")

			mode := session.ModeNormal
			switch {
			case noCache:
				mode = session.ModeBypass
			case refresh:
				mode = session.ModeRefresh
			}

			return runApp(func(app application) error {
				ctx := observability.WithRequestID(cmd.Context(), observability.GenerateRequestID())

				var prior []string
				if contextDepth > 0 {
					recent, err := app.History.Recent(ctx, contextDepth)
					if err != nil {
						app.Logger.Warn("loading context from history failed", observability.Error(err))
					} else {
						// Oldest first, so the conversation reads in order.
						for i := len(recent) - 1; i >= 0; i-- {
							prior = append(prior, recent[i].Response)
						}
					}
				}

				result, err := app.Controller.Ask(ctx, query, prior, mode)
				if err != nil {
					return err
				}

				printResult(cmd, result)

				if result.FromCache && confirmRegenerate(cmd) {
					result, err = app.Controller.Regenerate(ctx, result.EntryID, query, prior)
					if err != nil {
						return err
					}
					printResult(cmd, result)
				}

				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&noCache, "no-cache", false, "skip the cache entirely for this query")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "ask the model even on a cache hit and store the fresh answer")
	cmd.Flags().IntVar(&contextDepth, "context", 0, "thread the last N answers into the prompt")

	return cmd
}

func printResult(cmd *cobra.Command, result *session.Result) {
	fmt.Fprintln(cmd.OutOrStdout(), result.Response)
	if result.FromCache {
		fmt.Fprintf(cmd.ErrOrStderr(), "(cached, similarity %.2f)\n", result.Similarity)
	}
}

// confirmRegenerate offers a fresh model call after a served hit, but only
// on an interactive terminal.
func confirmRegenerate(cmd *cobra.Command) bool {
	if !isatty.IsTerminal(os.Stdin.Fd()) {
		return false
	}

	fmt.Fprint(cmd.ErrOrStderr(), "Regenerate? [y/N] ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}

	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
