package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"text/tabwriter"
	"time"

	"advisor-chat/internal/app"
	"advisor-chat/internal/domain"
	"advisor-chat/internal/infra/advisor"
	"github.com/spf13/cobra"
)

// withSession runs fn against the restored session of the configured client key.
func withSession(ctx context.Context, configPath string, fn func(*app.ConversationSession) error) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	d, err := newDeps(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer d.close()

	session := d.newSession(d.clientKey(clientKey))
	session.Restore(ctx)
	return fn(session)
}

// NewAskCmd sends one question in the persisted conversation.
func NewAskCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask the advisor a question in the current conversation",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), *configPath, func(s *app.ConversationSession) error {
				sendErr := s.SendQuestion(cmd.Context(), strings.Join(args, " "))
				if errors.Is(sendErr, domain.ErrEmptyQuestion) {
					return sendErr
				}
				state := s.State()
				last := state.Messages[len(state.Messages)-1]
				printMessage(cmd.OutOrStdout(), last)
				if sendErr != nil {
					return sendErr
				}
				if state.ConversationID != "" {
					fmt.Fprintf(cmd.ErrOrStderr(), "conversation %s\n", state.ConversationID)
				}
				return nil
			})
		},
	}
}

// NewHistoryCmd prints the persisted conversation.
func NewHistoryCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "Show the messages of the current conversation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), *configPath, func(s *app.ConversationSession) error {
				state := s.State()
				if state.ConversationID == "" {
					fmt.Fprintln(cmd.ErrOrStderr(), "no active conversation")
				}
				for _, m := range state.Messages {
					printMessage(cmd.OutOrStdout(), m)
				}
				return nil
			})
		},
	}
}

// NewConversationsCmd groups the conversation management subcommands.
func NewConversationsCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "conversations",
		Aliases: []string{"conv"},
		Short:   "List, switch, delete or start conversations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List conversations on the advisor backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), *configPath, func(s *app.ConversationSession) error {
				list, err := s.ListConversations(cmd.Context())
				if err != nil {
					return err
				}
				active := s.State().ConversationID
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "\tID\tUPDATED\tTITLE")
				for _, c := range list {
					marker := ""
					if c.ID == active {
						marker = "*"
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", marker, c.ID, c.UpdatedAt.Local().Format(time.DateTime), c.Title)
				}
				return tw.Flush()
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "use <conversationId>",
		Short: "Make a conversation the current one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), *configPath, func(s *app.ConversationSession) error {
				if err := s.SelectConversation(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "switched to %s (%d messages)\n", args[0], len(s.State().Messages))
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <conversationId>",
		Short: "Delete a conversation on the advisor backend",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), *configPath, func(s *app.ConversationSession) error {
				if err := s.DeleteConversation(cmd.Context(), args[0]); err != nil {
					if advisor.IsStatus(err, http.StatusNotFound) {
						return fmt.Errorf("conversation %s does not exist", args[0])
					}
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "new",
		Short: "Forget the current conversation and start over",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), *configPath, func(s *app.ConversationSession) error {
				if err := s.StartNewConversation(cmd.Context()); err != nil {
					return err
				}
				printMessage(cmd.OutOrStdout(), s.State().Messages[0])
				return nil
			})
		},
	})
	return cmd
}

func printMessage(w io.Writer, m domain.Message) {
	label := "advisor"
	switch m.Role {
	case domain.RoleUser:
		label = "you"
	case domain.RoleError:
		label = "error"
	}
	fmt.Fprintf(w, "[%s] %s:\n%s\n\n", m.Timestamp.Local().Format(time.DateTime), label, m.Content)
}
