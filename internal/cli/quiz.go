package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"advisor-chat/internal/domain"

	"github.com/spf13/cobra"
)

// NewQuizCmd takes a quiz non-interactively: answers are option indexes in question order.
func NewQuizCmd(configPath *string) *cobra.Command {
	var (
		answers    string
		enrollment string
	)
	cmd := &cobra.Command{
		Use:   "quiz <quizId>",
		Short: "Show a quiz, or score it with --answers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			d, err := newDeps(cmd.Context(), cfg, nil)
			if err != nil {
				return err
			}
			defer d.close()

			service := d.quizService()
			attempt, err := service.Start(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if answers == "" {
				quiz := attempt.Quiz()
				fmt.Fprintln(out, quiz.Title)
				for i, q := range quiz.Questions {
					fmt.Fprintf(out, "\n%d. %s\n", i+1, q.Prompt)
					for j, o := range q.Options {
						fmt.Fprintf(out, "   [%d] %s\n", j, o.Text)
					}
				}
				return nil
			}

			for i, raw := range strings.Split(answers, ",") {
				option, err := strconv.Atoi(strings.TrimSpace(raw))
				if err != nil {
					return fmt.Errorf("answer %d: %q is not an option index", i+1, raw)
				}
				if err := attempt.Select(i, option); err != nil {
					return fmt.Errorf("answer %d: %w", i+1, err)
				}
			}

			result, err := service.Submit(cmd.Context(), enrollment, attempt)
			if err != nil {
				return err
			}
			verdict := "not passed"
			if result.Passed {
				verdict = "passed"
			}
			fmt.Fprintf(out, "score %d%% (%s)\n", result.Score, verdict)
			return nil
		},
	}
	cmd.Flags().StringVar(&answers, "answers", "", "comma-separated option indexes, one per question")
	cmd.Flags().StringVar(&enrollment, "enrollment", "", "enrollment id to report progress for")
	return cmd
}

// NewImportQuizCmd stores a quiz document (JSON) and refreshes the quiz cache.
func NewImportQuizCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "import-quiz <file.json>",
		Short: "Store a quiz in the configured quiz store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var quiz domain.Quiz
			if err := json.Unmarshal(data, &quiz); err != nil {
				return fmt.Errorf("parse %s: %w", args[0], err)
			}

			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			d, err := newDeps(cmd.Context(), cfg, nil)
			if err != nil {
				return err
			}
			defer d.close()

			if err := d.quizService().Import(cmd.Context(), quiz); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %s (%d questions)\n", quiz.ID, len(quiz.Questions))
			return nil
		},
	}
}
