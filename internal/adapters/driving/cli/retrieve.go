package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/diagnobot/internal/core/domain"
)

var (
	retrieveLimit int
	retrieveJSON  bool
)

// snippetLength is the number of characters of each chunk shown in the table.
const snippetLength = 160

var retrieveCmd = &cobra.Command{
	Use:   "retrieve [query]",
	Short: "Show the passages most similar to a query",
	Long: `Embeds the query and returns the nearest chunks of the reference document,
ranked by cosine distance. No answer is generated.`,
	Args: cobra.ExactArgs(1),
	RunE: runRetrieve,
}

func init() {
	retrieveCmd.Flags().IntVarP(&retrieveLimit, "limit", "n", 0, "number of passages (0 = configured top_k)")
	retrieveCmd.Flags().BoolVar(&retrieveJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(retrieveCmd)
}

func runRetrieve(cmd *cobra.Command, args []string) error {
	query := args[0]

	if retrievalService == nil {
		return errors.New("retrieval service not configured")
	}

	ctx := commandContext(cmd)

	var result domain.RetrievalResult
	err := retryTransient(ctx, "retrieval", func() error {
		var err error
		result, err = retrievalService.Retrieve(ctx, query, retrieveLimit)
		return err
	})
	if err != nil {
		return fmt.Errorf("retrieval failed: %w", err)
	}

	if retrieveJSON {
		return outputRetrieveJSON(cmd, result)
	}

	return outputRetrieveTable(cmd, result)
}

func outputRetrieveJSON(cmd *cobra.Command, result domain.RetrievalResult) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputRetrieveTable(cmd *cobra.Command, result domain.RetrievalResult) error {
	if result.Len() == 0 {
		cmd.Println("No passages found.")
		return nil
	}

	cmd.Println("Passages:")
	cmd.Println()
	for i := range result.Chunks {
		// Format: [N] chunk-id (page P, distance D)
		sc := result.Chunks[i]
		cmd.Printf("  [%d] %s (page %d, distance %.4f)\n",
			sc.Rank, sc.Chunk.ID, sc.Chunk.SourcePage+1, sc.Distance)
		cmd.Printf("      %s\n", snippet(sc.Chunk.Text, snippetLength))
		cmd.Println()
	}

	return nil
}

// snippet collapses whitespace and shortens text to at most n runes.
func snippet(text string, n int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n]) + "..."
}
