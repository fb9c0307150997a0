package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var askCmd = &cobra.Command{
	Use:   "ask [symptoms...]",
	Short: "Get a preliminary assessment of symptoms",
	Long: `Describes likely conditions and next steps for a set of symptoms.

This is a single stateless answer: it does not search the reference document
and keeps no conversation history. Use 'diagnobot chat' for grounded answers.

Examples:
  diagnobot ask "headache and fever for two days"
  diagnobot ask sore throat, runny nose`,
	Args: cobra.ArbitraryArgs,
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	if answerService == nil {
		return errors.New("answer service not configured")
	}

	ctx := commandContext(cmd)
	symptoms := strings.Join(args, " ")

	var text string
	err := retryTransient(ctx, "assessment", func() error {
		var err error
		text, err = answerService.AnswerOnce(ctx, symptoms)
		return err
	})

	// The text is presentable even when generation failed.
	cmd.Println(text)
	if err != nil {
		return fmt.Errorf("assessment failed: %w", err)
	}
	return nil
}
