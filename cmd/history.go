package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"chatctl/internal"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var (
	historyCached bool
)

var (
	// Styles
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	idStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("240")).
		Italic(true)

	countStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	dateStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List your conversations",
	Long: `List your conversations, newest first.

With --cached the list comes from the local cache instead of the server,
so it works offline.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newAppContext()
		if err != nil {
			return err
		}

		if historyCached {
			cache := internal.NewConvCache(app.cfg.ConvCacheDir())
			cached, err := cache.LoadAll()
			if err != nil {
				return fmt.Errorf("failed to read conversation cache: %w", err)
			}
			convs := make([]internal.Conversation, 0, len(cached))
			for _, c := range cached {
				convs = append(convs, *c)
			}
			displayConversations(convs, true)
			return nil
		}

		if err := app.requireLogin(); err != nil {
			return err
		}
		convs, err := app.api.History(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to load history: %w", err)
		}
		displayConversations(convs, false)
		return nil
	},
}

func displayConversations(convs []internal.Conversation, cached bool) {
	if len(convs) == 0 {
		fmt.Println(headerStyle.Render("💬 No conversations found"))
		return
	}

	label := fmt.Sprintf("💬 Found %d conversation(s)", len(convs))
	if cached {
		label += " (cached)"
	}
	fmt.Println(headerStyle.Render(label))
	fmt.Println()

	// Use tabwriter for aligned columns
	w := tabwriter.NewWriter(lipgloss.DefaultRenderer().Output(), 0, 0, 3, ' ', tabwriter.AlignRight)

	_, _ = fmt.Fprintln(w, titleStyle.Render("ID")+"\t"+titleStyle.Render("Title")+"\t"+titleStyle.Render("Messages")+"\t"+titleStyle.Render("Date")+"\t")
	_, _ = fmt.Fprintln(w, strings.Repeat("─", 90))

	for _, conv := range convs {
		title := conv.Title
		if title == "" {
			title = "Untitled"
		}
		if len(title) > 50 {
			title = title[:47] + "..."
		}
		title = lipgloss.NewStyle().Foreground(lipgloss.Color("255")).Render(title)

		msgCount := countStyle.Render(strconv.Itoa(len(conv.Messages)))

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t\n",
			idStyle.Render(strconv.FormatInt(conv.ID, 10)),
			title, msgCount, dateStyle.Render(formatDate(conv.Date)))
	}

	_ = w.Flush()
	fmt.Println()
	fmt.Println(idStyle.Render("💡 Tip: continue a conversation with `chatctl chat -c <id> ...`"))
}

// formatDate renders a conversation date relative to now when recent
func formatDate(raw string) string {
	if raw == "" {
		return "—"
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		if len(raw) >= 10 {
			return raw[:10]
		}
		return raw
	}
	diff := time.Since(t)
	switch {
	case diff < 24*time.Hour:
		return t.Format("Today 15:04")
	case diff < 7*24*time.Hour:
		return t.Format("Mon 15:04")
	case diff < 365*24*time.Hour:
		return t.Format("Jan 02 15:04")
	default:
		return t.Format("2006-01-02")
	}
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete one conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newAppContext()
		if err != nil {
			return err
		}
		if err := app.requireLogin(); err != nil {
			return err
		}
		id, err := parseConversationID(args[0])
		if err != nil {
			return err
		}

		if err := app.api.DeleteConversation(cmd.Context(), id); err != nil {
			return fmt.Errorf("failed to delete conversation %d: %w", id, err)
		}

		// Local side-stores follow the server
		meta, err := internal.OpenMetaCache(app.cfg.MetaDBPath())
		if err == nil {
			meta.ClearForConversation(id)
			_ = meta.Close()
		}
		cache := internal.NewConvCache(app.cfg.ConvCacheDir())
		if err := cache.Remove(id); err != nil {
			internal.LogWarn("failed to drop cached conversation %d: %v", id, err)
		}

		internal.PrintSuccess(fmt.Sprintf("Deleted conversation %d", id))
		return nil
	},
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all your conversations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newAppContext()
		if err != nil {
			return err
		}
		if err := app.requireLogin(); err != nil {
			return err
		}

		if err := app.api.DeleteAllConversations(cmd.Context()); err != nil {
			return fmt.Errorf("failed to clear history: %w", err)
		}

		cache := internal.NewConvCache(app.cfg.ConvCacheDir())
		if err := cache.Clear(); err != nil {
			internal.LogWarn("failed to clear conversation cache: %v", err)
		}

		internal.PrintSuccess("History cleared")
		return nil
	},
}

var historyRenameCmd = &cobra.Command{
	Use:   "rename <id> <title>",
	Short: "Rename a conversation",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newAppContext()
		if err != nil {
			return err
		}
		if err := app.requireLogin(); err != nil {
			return err
		}
		id, err := parseConversationID(args[0])
		if err != nil {
			return err
		}
		if err := app.api.RenameConversation(cmd.Context(), id, args[1]); err != nil {
			return fmt.Errorf("failed to rename conversation %d: %w", id, err)
		}
		internal.PrintSuccess(fmt.Sprintf("Renamed conversation %d", id))
		return nil
	},
}

func parseConversationID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid conversation id %q", raw)
	}
	return id, nil
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyDeleteCmd)
	historyCmd.AddCommand(historyClearCmd)
	historyCmd.AddCommand(historyRenameCmd)
	historyCmd.Flags().BoolVar(&historyCached, "cached", false, "List from the local cache (works offline)")
}
