package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"chatctl/internal"
	"chatctl/internal/export"
	"github.com/spf13/cobra"
)

var (
	exportFormat string
	exportOutput string
	exportCached bool
)

var exportCmd = &cobra.Command{
	Use:   "export <id>",
	Short: "Export a conversation",
	Long: `Export a conversation in jsonl, md, yaml or json format.

Without --output the result goes to stdout. Attachment and document
annotations are restored from the local cache before exporting.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newAppContext()
		if err != nil {
			return err
		}
		id, err := parseConversationID(args[0])
		if err != nil {
			return err
		}

		exporter, err := export.NewExporter(exportFormat)
		if err != nil {
			return err
		}

		meta, err := internal.OpenMetaCache(app.cfg.MetaDBPath())
		if err != nil {
			return fmt.Errorf("failed to open meta cache: %w", err)
		}
		defer func() { _ = meta.Close() }()

		conv, err := loadConversation(cmd, app, meta, id)
		if err != nil {
			return err
		}

		if exportOutput == "" {
			return exporter.Export(conv, os.Stdout)
		}

		path := exportOutput
		if filepath.Ext(path) == "" {
			path += "." + exporter.Extension()
		}
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", path, err)
		}
		defer func() { _ = f.Close() }()

		if err := exporter.Export(conv, f); err != nil {
			return fmt.Errorf("export failed: %w", err)
		}
		internal.PrintSuccess(fmt.Sprintf("Exported conversation %d to %s", id, path))
		return nil
	},
}

// loadConversation fetches a conversation from the server or the local
// cache and overlays the cached message annotations
func loadConversation(cmd *cobra.Command, app *appContext, meta *internal.MetaCache, id int64) (*internal.Conversation, error) {
	if exportCached {
		cache := internal.NewConvCache(app.cfg.ConvCacheDir())
		conv, err := cache.Load(id)
		if err != nil {
			return nil, fmt.Errorf("conversation %d is not cached: %w", id, err)
		}
		meta.MergeOnto(id, conv.Messages)
		return conv, nil
	}

	if err := app.requireLogin(); err != nil {
		return nil, err
	}
	msgs, err := app.api.Messages(cmd.Context(), id)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation %d: %w", id, err)
	}
	meta.MergeOnto(id, msgs)
	return &internal.Conversation{ID: id, Messages: msgs}, nil
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "jsonl", "Export format (jsonl, md, yaml, json)")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file (default stdout)")
	exportCmd.Flags().BoolVar(&exportCached, "cached", false, "Read from the local cache (works offline)")
}
