package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/diagnobot/internal/core/domain"
	"github.com/custodia-labs/diagnobot/internal/logger"
)

var chatShowSources bool

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start a conversation grounded in the reference document",
	Long: `Starts an interactive conversation. Each question is answered from the
passages of the reference document most similar to it, together with the
earlier turns of the conversation.

Type 'exit' to end the conversation.`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().BoolVarP(&chatShowSources, "sources", "s", true, "show the pages each answer was drawn from")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, _ []string) error {
	if answerService == nil {
		return errors.New("answer service not configured")
	}

	ctx := commandContext(cmd)

	if indexService != nil {
		cmd.Println("Preparing index...")
		err := retryTransient(ctx, "index preparation", func() error {
			_, err := indexService.EnsureIndex(ctx)
			return err
		})
		if err != nil {
			return fmt.Errorf("index preparation failed: %w", err)
		}
	}

	session := answerService.NewSession()
	logger.Debug("started session %s", session.ID)

	cmd.Println("DiagnoBot is ready. Ask a medical question, or type 'exit' to quit.")
	cmd.Println()

	return chatLoop(ctx, cmd, cmd.InOrStdin(), session)
}

func chatLoop(ctx context.Context, cmd *cobra.Command, in io.Reader, session *domain.ConversationSession) error {
	interactive := isTerminal(in)
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		if interactive {
			cmd.Print("You: ")
		}
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("failed to read input: %w", err)
			}
			return nil
		}

		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}

		var reply *domain.SessionReply
		err := retryTransient(ctx, "answer", func() error {
			var err error
			reply, err = answerService.AnswerInSession(ctx, session, question)
			return err
		})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Error("answer failed: %v", err)
			cmd.Printf("DiagnoBot: Sorry, I could not answer that (%v). Please try again.\n\n", err)
			continue
		}

		cmd.Printf("DiagnoBot: %s\n", reply.Answer)
		if reply.Farewell {
			return nil
		}
		if chatShowSources && len(reply.Sources) > 0 {
			cmd.Printf("Sources: %s\n", formatSources(reply.Sources))
		}
		cmd.Println()
	}
}

// formatSources lists the 1-based pages of the chunks, without duplicates.
func formatSources(chunks []domain.ScoredChunk) string {
	seen := make(map[int]bool, len(chunks))
	pages := make([]string, 0, len(chunks))
	for i := range chunks {
		page := chunks[i].Chunk.SourcePage + 1
		if seen[page] {
			continue
		}
		seen[page] = true
		pages = append(pages, fmt.Sprintf("page %d", page))
	}
	return strings.Join(pages, ", ")
}

func isTerminal(in io.Reader) bool {
	f, ok := in.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
