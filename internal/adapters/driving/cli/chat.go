package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question about the ingested documents",
	Long: `Retrieve the excerpts most similar to the question and ask the language
model to answer from them. When no model is configured, or it fails, the
reply is built from the excerpts themselves and marked as degraded.

Pass --session to continue a conversation; the session id is printed
with every reply.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

var retrieveCmd = &cobra.Command{
	Use:   "retrieve [query]",
	Short: "Show the excerpts most similar to a query",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runRetrieve,
}

var historyCmd = &cobra.Command{
	Use:   "history [session-id]",
	Short: "Show the messages of a session",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistory,
}

var clearCmd = &cobra.Command{
	Use:   "clear [session-id]",
	Short: "Delete a session's history",
	Args:  cobra.ExactArgs(1),
	RunE:  runClear,
}

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List chat sessions",
	RunE:  runSessions,
}

// Flags for the chat commands.
var (
	askSession     string
	askJSON        bool
	retrieveTopK   int
	retrieveThresh float64
	retrieveJSON   bool
	historyLimit   int
)

func init() {
	askCmd.Flags().StringVarP(&askSession, "session", "s", "", "Session to continue (default new session)")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "Print the reply as JSON")

	retrieveCmd.Flags().IntVarP(&retrieveTopK, "top-k", "k", 0, "Number of excerpts (default from settings)")
	retrieveCmd.Flags().Float64Var(&retrieveThresh, "threshold", 0, "Minimum similarity (default from settings)")
	retrieveCmd.Flags().BoolVar(&retrieveJSON, "json", false, "Print the outcome as JSON")

	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 0, "Show only the last n messages")

	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(retrieveCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(sessionsCmd)
}

type askJSONOutput struct {
	SessionID      string   `json:"session_id"`
	Answer         string   `json:"answer"`
	Sources        []string `json:"sources"`
	Degraded       bool     `json:"degraded"`
	TokenUsage     int      `json:"token_usage"`
	RelevantChunks int      `json:"relevant_chunks"`
	ResponseTimeMS int64    `json:"response_time_ms"`
	Retrieval      string   `json:"retrieval"`
}

func runAsk(cmd *cobra.Command, args []string) error {
	if chatService == nil {
		return errors.New("chat service not configured")
	}

	question := strings.Join(args, " ")
	reply, err := chatService.Ask(cmd.Context(), askSession, question)
	if err != nil {
		return fmt.Errorf("failed to answer: %w", err)
	}

	if askJSON {
		sources := reply.Sources
		if sources == nil {
			sources = []string{}
		}
		return printJSON(cmd, askJSONOutput{
			SessionID:      reply.SessionID,
			Answer:         reply.Content,
			Sources:        sources,
			Degraded:       reply.Degraded,
			TokenUsage:     reply.TokenUsage,
			RelevantChunks: reply.RelevantCount,
			ResponseTimeMS: reply.ResponseTime.Milliseconds(),
			Retrieval:      reply.Retrieval.String(),
		})
	}

	cmd.Println(reply.Content)
	cmd.Println()
	if len(reply.Sources) > 0 {
		cmd.Printf("Sources: %s\n", strings.Join(reply.Sources, ", "))
	}
	if reply.Degraded {
		cmd.Println("(degraded: answer built from excerpts, language model unavailable)")
	}
	cmd.Printf("Session: %s\n", reply.SessionID)
	return nil
}

type excerptJSON struct {
	DocumentID string  `json:"document_id"`
	Filename   string  `json:"filename"`
	ChunkIndex int     `json:"chunk_index"`
	Similarity float64 `json:"similarity"`
	Content    string  `json:"content"`
}

type retrieveJSONOutput struct {
	Reason  string        `json:"reason"`
	Error   string        `json:"error,omitempty"`
	Results []excerptJSON `json:"results"`
}

func runRetrieve(cmd *cobra.Command, args []string) error {
	if retrieverService == nil {
		return errors.New("retriever not configured")
	}

	topK := retrieveTopK
	if topK <= 0 {
		topK = ragSettings.TopK
	}
	threshold := ragSettings.SimilarityThreshold
	if cmd.Flags().Changed("threshold") {
		threshold = retrieveThresh
	}

	outcome := retrieverService.Retrieve(cmd.Context(), strings.Join(args, " "), topK, &threshold)

	if retrieveJSON {
		out := retrieveJSONOutput{
			Reason:  outcome.Reason.String(),
			Results: make([]excerptJSON, len(outcome.Results)),
		}
		if outcome.Err != nil {
			out.Error = outcome.Err.Error()
		}
		for i, r := range outcome.Results {
			out.Results[i] = excerptJSON{
				DocumentID: r.Metadata.DocumentID,
				Filename:   r.Metadata.Filename,
				ChunkIndex: r.Metadata.Ordinal,
				Similarity: r.Similarity,
				Content:    r.Content,
			}
		}
		return printJSON(cmd, out)
	}

	if outcome.Reason.IsFailure() {
		return fmt.Errorf("retrieval failed (%s): %w", outcome.Reason, outcome.Err)
	}
	if outcome.Empty() {
		cmd.Printf("No excerpts found (%s)\n", outcome.Reason)
		return nil
	}

	for i, r := range outcome.Results {
		cmd.Printf("%d. %s #%d (similarity %.3f)\n", i+1, r.Metadata.Filename, r.Metadata.Ordinal, r.Similarity)
		cmd.Printf("   %s\n\n", preview(r.Content, 200))
	}
	cmd.Printf("Found %d excerpts\n", len(outcome.Results))
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	if chatService == nil {
		return errors.New("chat service not configured")
	}

	msgs, err := chatService.History(cmd.Context(), args[0], historyLimit)
	if err != nil {
		return fmt.Errorf("failed to read history: %w", err)
	}
	if len(msgs) == 0 {
		cmd.Printf("No messages in session: %s\n", args[0])
		return nil
	}

	for _, m := range msgs {
		cmd.Printf("[%s] %s: %s\n", m.Timestamp.Format("15:04:05"), m.Role, m.Content)
	}
	return nil
}

func runClear(cmd *cobra.Command, args []string) error {
	if chatService == nil {
		return errors.New("chat service not configured")
	}

	if err := chatService.Clear(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	cmd.Printf("Cleared session %s\n", args[0])
	return nil
}

func runSessions(cmd *cobra.Command, _ []string) error {
	if chatService == nil {
		return errors.New("chat service not configured")
	}

	sessions, err := chatService.Sessions(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}
	if len(sessions) == 0 {
		cmd.Println("No sessions.")
		return nil
	}

	for _, s := range sessions {
		cmd.Printf("  %s  %d messages  last active %s\n",
			s.ID, s.MessageCount, s.UpdatedAt.Format("2006-01-02 15:04:05"))
	}
	cmd.Printf("Total: %d sessions\n", len(sessions))
	return nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// preview flattens whitespace and truncates to n runes.
func preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
