package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/docchat/internal/core/domain"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [file]...",
	Short: "Ingest documents into the index",
	Long: `Extract text from each file, split it into chunks and index the chunk
embeddings. Supported formats are .txt, .text, .md, .markdown, .html, .htm,
.docx and .pdf.

By default documents are processed in the background and the command
returns once all of them have been indexed. Use --wait to process each
file in turn and print its chunk count.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

var documentsCmd = &cobra.Command{
	Use:   "documents",
	Short: "List ingested documents",
	RunE:  runDocuments,
}

var deleteCmd = &cobra.Command{
	Use:   "delete [doc-id]",
	Short: "Delete a document and its index entries",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

// Flags for the ingest command.
var (
	ingestID   string
	ingestWait bool
)

func init() {
	ingestCmd.Flags().StringVar(&ingestID, "id", "", "Document id (only with a single file; default random)")
	ingestCmd.Flags().BoolVarP(&ingestWait, "wait", "w", false, "Process synchronously and report chunk counts")

	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(documentsCmd)
	rootCmd.AddCommand(deleteCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if ingestionService == nil {
		return errors.New("ingestion service not configured")
	}
	if fileExtractor == nil {
		return errors.New("text extractor not configured")
	}
	if ingestID != "" && len(args) > 1 {
		return errors.New("--id can only be used with a single file")
	}

	ctx := cmd.Context()
	failed := 0
	var submitted []*domain.Document
	for _, path := range args {
		doc, text, err := prepareDocument(ctx, path, ingestID)
		if err != nil {
			cmd.PrintErrf("Skipping %s: %v\n", path, err)
			failed++
			continue
		}

		if ingestWait {
			n, err := ingestionService.Process(ctx, doc, text)
			if err != nil {
				cmd.PrintErrf("Failed %s: %v\n", doc.Filename, err)
				failed++
				continue
			}
			cmd.Printf("Indexed %s (%s): %d chunks\n", doc.Filename, doc.ID, n)
			continue
		}

		if err := ingestionService.Submit(ctx, doc, text); err != nil {
			cmd.PrintErrf("Failed %s: %v\n", doc.Filename, err)
			failed++
			continue
		}
		cmd.Printf("Submitted %s (%s)\n", doc.Filename, doc.ID)
		submitted = append(submitted, doc)
	}

	if !ingestWait {
		ingestionService.Wait()
		failed += reportBackgroundFailures(cmd, submitted)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(args))
	}
	return nil
}

// reportBackgroundFailures prints each submitted document whose background
// run failed and returns how many did.
func reportBackgroundFailures(cmd *cobra.Command, docs []*domain.Document) int {
	failed := 0
	for _, doc := range docs {
		rec, err := ingestionService.Get(cmd.Context(), doc.ID)
		if err != nil {
			cmd.PrintErrf("Failed %s: %v\n", doc.Filename, err)
			failed++
			continue
		}
		if rec.Error != "" {
			cmd.PrintErrf("Failed %s: %s\n", doc.Filename, rec.Error)
			failed++
		}
	}
	return failed
}

// prepareDocument extracts a file and builds its document record.
func prepareDocument(ctx context.Context, path, id string) (*domain.Document, string, error) {
	text, size, err := fileExtractor.ExtractFile(ctx, path)
	if err != nil {
		return nil, "", err
	}
	if id == "" {
		id = uuid.New().String()
	}
	doc, err := domain.NewDocument(id, filepath.Base(path), size)
	if err != nil {
		return nil, "", err
	}
	return doc, text, nil
}

func runDocuments(cmd *cobra.Command, _ []string) error {
	if ingestionService == nil {
		return errors.New("ingestion service not configured")
	}

	docs, err := ingestionService.List(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	if len(docs) == 0 {
		cmd.Println("No documents ingested.")
		cmd.Println("Use 'docchat ingest <file>' to add one.")
		return nil
	}

	cmd.Println("Documents:")
	cmd.Println()
	for i := range docs {
		d := &docs[i]
		cmd.Printf("  %s\n", d.ID)
		cmd.Printf("    File: %s (%d bytes)\n", d.Filename, d.ByteSize)
		cmd.Printf("    Uploaded: %s\n", d.UploadedAt.Format("2006-01-02 15:04:05"))
		status := d.Status()
		if d.ChunkCount != nil {
			status = fmt.Sprintf("%s, %d chunks", status, *d.ChunkCount)
		}
		cmd.Printf("    Status: %s\n", status)
		if d.Error != "" {
			cmd.Printf("    Error: %s\n", d.Error)
		}
		cmd.Println()
	}

	cmd.Printf("Total: %d documents\n", len(docs))
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	if ingestionService == nil {
		return errors.New("ingestion service not configured")
	}

	id := strings.TrimSpace(args[0])
	removed, err := ingestionService.Delete(cmd.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("document not found: %s", id)
		}
		return fmt.Errorf("failed to delete document: %w", err)
	}

	cmd.Printf("Deleted document %s (%d index entries removed)\n", id, removed)
	return nil
}
