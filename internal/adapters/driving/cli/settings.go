package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/docchat/internal/core/domain"
)

// stdin is the source of interactive answers.
var stdin io.Reader = os.Stdin

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage application settings",
	Long: `View and configure retrieval tunables, AI providers and the vector index.

Settings are stored in ~/.docchat/config.toml. DOCCHAT_* environment
variables override them for a single run.`,
	RunE: runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE:  runSettingsShow,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Set a single setting",
	Long: `Set one setting by its dotted key, for example:

  docchat settings set rag.top_k 5
  docchat settings set rag.embed_timeout 15s
  docchat settings set vector_index.backend memory

Run 'docchat settings keys' for the full list.`,
	Args: cobra.ExactArgs(2),
	RunE: runSettingsSet,
}

var settingsKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List setting keys",
	Run: func(cmd *cobra.Command, _ []string) {
		for _, k := range settingKeys() {
			cmd.Println(k)
		}
	},
}

var settingsEmbeddingCmd = &cobra.Command{
	Use:   "embedding",
	Short: "Configure embedding provider",
	Long:  `Interactively choose the provider used to embed chunks and queries.`,
	RunE:  runSettingsEmbedding,
}

var settingsLLMCmd = &cobra.Command{
	Use:   "llm",
	Short: "Configure LLM provider",
	Long:  `Interactively choose the language model used to answer questions.`,
	RunE:  runSettingsLLM,
}

// settingKeys lists the keys accepted by 'settings set'.
var settingKeys = func() []string { return nil }

// SetSettingKeys registers the list printed by 'settings keys'.
func SetSettingKeys(fn func() []string) {
	if fn != nil {
		settingKeys = fn
	}
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	settingsCmd.AddCommand(settingsKeysCmd)
	settingsCmd.AddCommand(settingsEmbeddingCmd)
	settingsCmd.AddCommand(settingsLLMCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	cmd.Println("Current Settings")
	cmd.Println("================")
	cmd.Println()

	rag := settings.RAG
	cmd.Println("[Retrieval]")
	cmd.Printf("  Chunk size: %d (overlap %d, lookback %d)\n", rag.ChunkSize, rag.ChunkOverlap, rag.MaxLookback)
	cmd.Printf("  Top K: %d\n", rag.TopK)
	cmd.Printf("  Similarity threshold: %.2f\n", rag.SimilarityThreshold)
	cmd.Printf("  History messages: %d\n", rag.MaxHistory)
	cmd.Printf("  Embed batch size: %d\n", rag.EmbedBatchSize)
	cmd.Printf("  Timeouts: embed %s, generation %s\n", rag.EmbedTimeout, rag.GenerationTimeout)
	cmd.Printf("  Generation: max %d tokens, temperature %.2f\n", rag.MaxTokens, rag.Temperature)
	cmd.Println()

	cmd.Println("[Embedding]")
	printProvider(cmd, settings.Embedding.Provider, settings.Embedding.Model,
		settings.Embedding.BaseURL, settings.Embedding.APIKey, settings.Embedding.IsConfigured())
	cmd.Println()

	cmd.Println("[LLM]")
	if settings.LLM.Provider == "" {
		cmd.Println("  Provider: none (answers are built from excerpts)")
	} else {
		printProvider(cmd, settings.LLM.Provider, settings.LLM.Model,
			settings.LLM.BaseURL, settings.LLM.APIKey, settings.LLM.IsConfigured())
	}
	cmd.Println()

	cmd.Println("[Vector Index]")
	cmd.Printf("  Backend: %s\n", settings.VectorIndex.Backend)
	if settings.VectorIndex.Backend == domain.VectorBackendPostgres {
		url := "(not set)"
		if settings.VectorIndex.PostgresURL != "" {
			url = "(set)"
		}
		cmd.Printf("  Postgres URL: %s\n", url)
	}
	cmd.Println()

	if err := settingsService.Validate(); err != nil {
		cmd.Printf("Warning: %v\n", err)
		cmd.Println("Run 'docchat settings set' or 'docchat settings embedding' to fix it.")
	} else {
		cmd.Println("Configuration is valid.")
	}

	return nil
}

func printProvider(cmd *cobra.Command, p domain.AIProvider, model, baseURL, apiKey string, configured bool) {
	cmd.Printf("  Provider: %s\n", p.Description())
	if model != "" {
		cmd.Printf("  Model: %s\n", model)
	}
	if baseURL != "" {
		cmd.Printf("  Base URL: %s\n", baseURL)
	}
	if p.RequiresAPIKey() {
		if apiKey != "" {
			cmd.Printf("  API Key: %s\n", maskAPIKey(apiKey))
		} else {
			cmd.Printf("  API Key: (not set)\n")
		}
	}
	status := "configured"
	if !configured {
		status = "not configured"
	}
	cmd.Printf("  Status: %s\n", status)
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	key, value := args[0], args[1]
	if err := settingsService.Set(key, value); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}

	shown := value
	if strings.HasSuffix(key, "api_key") {
		shown = maskAPIKey(value)
	}
	cmd.Printf("Set %s = %s\n", strings.ToLower(key), shown)
	return nil
}

func runSettingsEmbedding(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}
	return configureProvider(cmd, bufio.NewReader(stdin), embeddingPrompt)
}

func runSettingsLLM(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}
	return configureProvider(cmd, bufio.NewReader(stdin), llmPrompt)
}

// providerPrompt describes one interactive provider choice.
type providerPrompt struct {
	label     string
	providers []domain.AIProvider
	models    map[domain.AIProvider]string
	allowNone bool
	set       func(p domain.AIProvider, model, apiKey string) error
	validate  func() error
}

var embeddingPrompt = providerPrompt{
	label:     "embedding",
	providers: domain.AllEmbeddingProviders(),
	models:    domain.DefaultEmbeddingModels(),
	set: func(p domain.AIProvider, model, apiKey string) error {
		return settingsService.SetEmbeddingProvider(p, model, apiKey)
	},
	validate: func() error { return settingsService.ValidateEmbeddingConfig() },
}

var llmPrompt = providerPrompt{
	label:     "LLM",
	providers: domain.AllLLMProviders(),
	models:    domain.DefaultLLMModels(),
	allowNone: true,
	set: func(p domain.AIProvider, model, apiKey string) error {
		return settingsService.SetLLMProvider(p, model, apiKey)
	},
	validate: func() error { return settingsService.ValidateLLMConfig() },
}

func configureProvider(cmd *cobra.Command, reader *bufio.Reader, pp providerPrompt) error {
	cmd.Printf("Select %s provider\n", pp.label)
	for i, p := range pp.providers {
		cmd.Printf("  %d. %s\n", i+1, p.Description())
	}
	choices := len(pp.providers)
	if pp.allowNone {
		choices++
		cmd.Printf("  %d. None (answer from excerpts only)\n", choices)
	}
	cmd.Print("\nEnter choice [1]: ")
	idx := parseChoice(readLine(reader), choices, 1)

	if idx > len(pp.providers) {
		if err := settingsService.Set("llm.provider", ""); err != nil {
			return fmt.Errorf("failed to disable %s provider: %w", pp.label, err)
		}
		cmd.Printf("%s provider disabled\n", pp.label)
		return nil
	}
	selected := pp.providers[idx-1]

	defaultModel := pp.models[selected]
	cmd.Printf("Enter model name [%s]: ", defaultModel)
	model := readLine(reader)
	if model == "" {
		model = defaultModel
	}

	var apiKey string
	if selected.RequiresAPIKey() {
		cmd.Print("Enter API key: ")
		apiKey = readPassword(reader)
		cmd.Println()
		if apiKey == "" {
			return errors.New("API key is required for this provider")
		}
	}

	if err := pp.set(selected, model, apiKey); err != nil {
		return fmt.Errorf("failed to configure %s provider: %w", pp.label, err)
	}

	cmd.Print("Validating configuration... ")
	if err := pp.validate(); err != nil {
		cmd.Printf("FAILED: %v\n", err)
		return fmt.Errorf("%s configuration validation failed: %w", pp.label, err)
	}
	cmd.Println("OK")

	cmd.Printf("%s provider configured: %s (%s)\n", pp.label, selected.Description(), model)
	return nil
}

//nolint:errcheck // CLI helper, error ignored for UX
func readLine(reader *bufio.Reader) string {
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func parseChoice(input string, maxVal, defaultVal int) int {
	if input == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(input)
	if err != nil || val < 1 || val > maxVal {
		return defaultVal
	}
	return val
}

// readPassword reads without echo on a terminal, else falls back to a line.
func readPassword(reader *bufio.Reader) string {
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		password, err := term.ReadPassword(int(f.Fd()))
		if err == nil {
			return strings.TrimSpace(string(password))
		}
	}
	return readLine(reader)
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
