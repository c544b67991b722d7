package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ent0n29/fundora/internal/assistant"
	"github.com/ent0n29/fundora/internal/matcher"
)

const cliTimeout = 30 * time.Second

func userFlag(cmd *cobra.Command, dst *string) {
	cmd.Flags().StringVarP(dst, "user", "u", "anonymous", "user id")
}

// withAssistant runs fn against a voiceless assistant bound to user.
func withAssistant(user string, fn func(a *assistant.Assistant) error) error {
	ctx, cancel := withTimeout(cliTimeout)
	defer cancel()
	rt, err := setup(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	a := assistant.New(user, rt.store, matcher.New(nil),
		assistant.WithMetrics(rt.metrics),
		assistant.WithLogger(rt.log),
	)
	return fn(a)
}

func newAskCmd() *cobra.Command {
	var user string
	cmd := &cobra.Command{
		Use:   "ask [question...]",
		Short: "Ask a finance question in text and record the turn",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			return withAssistant(user, func(a *assistant.Assistant) error {
				ctx, cancel := withTimeout(cliTimeout)
				defer cancel()
				res, err := a.Respond(ctx, text)
				fmt.Fprintln(cmd.OutOrStdout(), res.Reply)
				return err
			})
		},
	}
	userFlag(cmd, &user)
	return cmd
}

func newHistoryCmd() *cobra.Command {
	var (
		user string
		wipe bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print or clear a user's conversation history",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withAssistant(user, func(a *assistant.Assistant) error {
				ctx, cancel := withTimeout(cliTimeout)
				defer cancel()
				if wipe {
					if err := a.ClearHistory(ctx); err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), "history cleared")
					return nil
				}
				entries, err := a.History(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(entries) == 0 {
					fmt.Fprintln(out, "no conversation yet")
				}
				for _, e := range entries {
					fmt.Fprintf(out, "[%s]\n  you:     %s\n  fundora: %s\n", e.Timestamp.Format(time.RFC3339), e.UserInput, e.BotResponse)
				}
				return nil
			})
		},
	}
	userFlag(cmd, &user)
	cmd.Flags().BoolVar(&wipe, "clear", false, "delete the history instead of printing it")
	return cmd
}

func newProfileCmd() *cobra.Command {
	var user string
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show a user's profile",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withAssistant(user, func(a *assistant.Assistant) error {
				ctx, cancel := withTimeout(cliTimeout)
				defer cancel()
				profile, err := a.Profile(ctx)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), profile)
			})
		},
	}
	userFlag(cmd, &user)

	var setUser string
	set := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set one profile fact; numbers and booleans are stored typed",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAssistant(setUser, func(a *assistant.Assistant) error {
				ctx, cancel := withTimeout(cliTimeout)
				defer cancel()
				profile, err := a.UpdateProfile(ctx, args[0], parseValue(args[1]))
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), profile)
			})
		},
	}
	userFlag(set, &setUser)
	cmd.AddCommand(set)
	return cmd
}

func newPersonaCmd() *cobra.Command {
	var user string
	cmd := &cobra.Command{
		Use:   "persona",
		Short: "Show a user's detected money persona",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withAssistant(user, func(a *assistant.Assistant) error {
				ctx, cancel := withTimeout(cliTimeout)
				defer cancel()
				p, err := a.Persona(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if !p.Valid() {
					fmt.Fprintln(out, "no persona yet; take the quiz in the web app")
					return nil
				}
				fmt.Fprintf(out, "%s\n%s\n", p.Headline(), p.Description())
				return nil
			})
		},
	}
	userFlag(cmd, &user)
	return cmd
}

// parseValue keeps CLI profile values typed like their JSON counterparts.
func parseValue(raw string) any {
	switch raw {
	case "true":
		return true
	case "false":
		return false
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	return raw
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
