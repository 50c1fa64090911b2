package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"chatctl/internal"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var (
	docsConversationID int64
	docsSearchTopK     int
)

var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "Manage your indexed documents",
}

var docsIngestCmd = &cobra.Command{
	Use:   "ingest <file...>",
	Short: "Index documents for grounded answers",
	Long: `Index one or more documents so the assistant can answer from them.

Files are processed one at a time; a failed file is reported and skipped.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newAppContext()
		if err != nil {
			return err
		}
		if err := app.requireLogin(); err != nil {
			return err
		}

		ns := app.identity.Namespace()
		failures := 0
		for _, path := range args {
			var info *internal.DocInfo
			err := internal.ShowProgress(cmd.Context(), fmt.Sprintf("Indexing %s...", path), func() error {
				var err error
				info, err = app.docqa.Ingest(cmd.Context(), ns, docsConversationID, path)
				return err
			})
			if err != nil {
				internal.PrintError(fmt.Sprintf("%s: %v", path, err))
				failures++
				continue
			}
			internal.PrintSuccess(fmt.Sprintf("%s (%d pages)", info.Name, info.Pages))
		}
		if failures == len(args) {
			return fmt.Errorf("no document could be indexed")
		}
		return nil
	},
}

var docsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your indexed documents",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newAppContext()
		if err != nil {
			return err
		}
		if err := app.requireLogin(); err != nil {
			return err
		}

		list, err := app.docqa.ListDocs(cmd.Context(), app.identity.Namespace(), docsConversationID)
		if err != nil {
			return fmt.Errorf("failed to list documents: %w", err)
		}

		if len(list.Docs) == 0 {
			fmt.Println(headerStyle.Render("📄 No documents indexed"))
			return nil
		}

		fmt.Println(headerStyle.Render(fmt.Sprintf("📄 %d document(s)", len(list.Docs))))
		fmt.Println()

		w := tabwriter.NewWriter(lipgloss.DefaultRenderer().Output(), 0, 0, 3, ' ', tabwriter.AlignRight)
		_, _ = fmt.Fprintln(w, titleStyle.Render("Name")+"\t"+titleStyle.Render("Pages")+"\t"+titleStyle.Render("Scope")+"\t")
		_, _ = fmt.Fprintln(w, strings.Repeat("─", 70))
		for _, doc := range list.Docs {
			scope := doc.Scope
			if scope == "" {
				scope = "—"
			}
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t\n", doc.Name, countStyle.Render(fmt.Sprintf("%d", doc.Pages)), dateStyle.Render(scope))
		}
		_ = w.Flush()
		return nil
	},
}

var docsSearchCmd = &cobra.Command{
	Use:   "search <query...>",
	Short: "Search your indexed documents",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newAppContext()
		if err != nil {
			return err
		}
		if err := app.requireLogin(); err != nil {
			return err
		}

		query := strings.Join(args, " ")
		hits, err := app.docqa.Search(cmd.Context(), app.identity.Namespace(), query, docsSearchTopK)
		if err != nil {
			return fmt.Errorf("search failed: %w", err)
		}

		if len(hits) == 0 {
			fmt.Println(headerStyle.Render("🔍 No results"))
			return nil
		}

		fmt.Println(headerStyle.Render(fmt.Sprintf("🔍 %d result(s) for %q", len(hits), query)))
		fmt.Println()
		for _, hit := range hits {
			fmt.Println(titleStyle.Render(fmt.Sprintf("%s (page %d, score %.2f)", hit.Doc, hit.Page, hit.Score)))
			fmt.Println(hit.Excerpt)
			fmt.Println()
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(docsCmd)
	docsCmd.AddCommand(docsIngestCmd)
	docsCmd.AddCommand(docsListCmd)
	docsCmd.AddCommand(docsSearchCmd)

	docsCmd.PersistentFlags().Int64VarP(&docsConversationID, "conversation", "c", 0, "Scope to a conversation")
	docsSearchCmd.Flags().IntVarP(&docsSearchTopK, "top", "k", 5, "Number of results")
}
