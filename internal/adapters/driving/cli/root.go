// Package cli implements the docchat command line.
package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docchat/internal/core/domain"
	"github.com/custodia-labs/docchat/internal/core/ports/driving"
	"github.com/custodia-labs/docchat/internal/logger"
)

// version is set at build time with -ldflags "-X ...cli.version=...".
var version = "dev"

// FileExtractor reads a file from disk and returns its plain text.
type FileExtractor interface {
	// ExtractFile returns the text and the file size in bytes.
	ExtractFile(ctx context.Context, path string) (string, int64, error)

	// Supports reports whether the file extension can be extracted.
	Supports(filename string) bool
}

// Services holds everything the commands call in to.
type Services struct {
	Ingestion driving.IngestionService
	Chat      driving.ChatService
	Retriever driving.Retriever
	Settings  driving.SettingsService
	Extractor FileExtractor

	// RAG supplies defaults for retrieval flags.
	RAG domain.RAGSettings
}

// Options carries global flag values to the bootstrap function.
type Options struct {
	DataDir string
	Verbose bool

	// SettingsOnly is set for 'settings' commands, which must run even
	// when the pipeline configuration is invalid.
	SettingsOnly bool
}

// BootstrapFunc builds the services once flags are parsed.
// The returned cleanup runs after the command finishes.
type BootstrapFunc func(ctx context.Context, opts Options) (*Services, func(), error)

var (
	ingestionService driving.IngestionService
	chatService      driving.ChatService
	retrieverService driving.Retriever
	settingsService  driving.SettingsService
	fileExtractor    FileExtractor
	ragSettings      = domain.DefaultRAGSettings()

	bootstrap BootstrapFunc
	cleanup   func()
)

// Global flags.
var (
	verboseFlag bool
	dataDirFlag string
)

// skipBootstrap marks commands that never touch the services.
const skipBootstrap = "skip-bootstrap"

var rootCmd = &cobra.Command{
	Use:   "docchat",
	Short: "Chat with your documents",
	Long: `docchat ingests local documents, indexes them as embeddings and
answers questions using the most relevant excerpts as context.

Run 'docchat settings' to see the embedding and language model setup.`,
	SilenceUsage:      true,
	PersistentPreRunE: runBootstrap,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&dataDirFlag, "data-dir", "", "Data directory (default ~/.docchat)")
}

// SetServices injects the services used by every command.
func SetServices(s *Services) {
	if s == nil {
		s = &Services{}
	}
	ingestionService = s.Ingestion
	chatService = s.Chat
	retrieverService = s.Retriever
	settingsService = s.Settings
	fileExtractor = s.Extractor
	ragSettings = s.RAG
	if ragSettings.TopK <= 0 {
		ragSettings = domain.DefaultRAGSettings()
	}
}

// SetBootstrap registers the function that builds services lazily.
func SetBootstrap(fn BootstrapFunc) {
	bootstrap = fn
}

// Execute runs the root command and releases bootstrapped resources.
func Execute(ctx context.Context) error {
	defer runCleanup()
	return rootCmd.ExecuteContext(ctx)
}

func runBootstrap(cmd *cobra.Command, _ []string) error {
	logger.SetVerbose(verboseFlag || logger.IsVerbose())

	if bootstrap == nil || cmd.Annotations[skipBootstrap] != "" {
		return nil
	}

	opts := Options{
		DataDir:      dataDirFlag,
		Verbose:      verboseFlag,
		SettingsOnly: isSettingsCommand(cmd),
	}
	svcs, done, err := bootstrap(cmd.Context(), opts)
	if err != nil {
		return err
	}
	if svcs == nil {
		return errors.New("bootstrap returned no services")
	}
	SetServices(svcs)
	cleanup = done
	return nil
}

func runCleanup() {
	if cleanup != nil {
		cleanup()
		cleanup = nil
	}
}

func isSettingsCommand(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c == settingsCmd {
			return true
		}
	}
	return false
}
