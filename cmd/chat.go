package cmd

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"chatctl/internal"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var (
	chatConversationID int64
	chatAttachments    []string
	chatWebSearch      bool
	chatPlain          bool
)

var (
	replyHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("212"))

	citationStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243")).
			Italic(true)

	docChipStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("135"))
)

var chatCmd = &cobra.Command{
	Use:   "chat <message...>",
	Short: "Send a message to the assistant",
	Long: `Send a message to the assistant and print the reply.

Without --conversation a new conversation is started; its id is printed so
you can continue it. Attached files are indexed first and the answer is
grounded in them. --web answers from a live web search with cited sources;
when documents are attached or already in use the answer blends both.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newAppContext()
		if err != nil {
			return err
		}
		if err := app.requireLogin(); err != nil {
			return err
		}

		meta, err := internal.OpenMetaCache(app.cfg.MetaDBPath())
		if err != nil {
			return fmt.Errorf("failed to open meta cache: %w", err)
		}
		defer func() { _ = meta.Close() }()

		dispatcher := internal.NewDispatcher(app.api, app.docqa, app.identity)
		binder := internal.NewBinder(app.api, meta, dispatcher)

		if err := binder.Bind(cmd.Context(), chatConversationID); err != nil {
			return err
		}

		drafts, err := collectDrafts(chatAttachments)
		if err != nil {
			return err
		}

		out := internal.Outgoing{
			Text:        strings.Join(args, " "),
			Attachments: drafts,
			WebSearch:   chatWebSearch,
		}

		var resp *internal.ChatResponse
		sendErr := internal.ShowProgress(cmd.Context(), "Waiting for the assistant...", func() error {
			var err error
			resp, err = binder.Send(cmd.Context(), out)
			return err
		})
		if sendErr != nil {
			return sendErr
		}

		printReply(resp, chatConversationID, binder.ConversationID())

		cacheConversation(app, binder)
		return nil
	},
}

// collectDrafts validates the attachment paths and resolves their mime types
func collectDrafts(paths []string) ([]internal.DraftAttachment, error) {
	if len(paths) == 0 {
		return nil, nil
	}
	drafts := make([]internal.DraftAttachment, 0, len(paths))
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("cannot attach %s: %w", path, err)
		}
		drafts = append(drafts, internal.DraftAttachment{
			Path:     path,
			Name:     filepath.Base(path),
			MimeType: mime.TypeByExtension(filepath.Ext(path)),
		})
	}
	return drafts, nil
}

func printReply(resp *internal.ChatResponse, requestedID, boundID int64) {
	if requestedID <= 0 && boundID > 0 {
		fmt.Println(replyHeaderStyle.Render(fmt.Sprintf("Conversation %d", boundID)))
		fmt.Println()
	}

	fmt.Print(renderMarkdown(resp.Reply))

	if len(resp.UsedDocs) > 0 {
		fmt.Println()
		fmt.Println(docChipStyle.Render("Documents: " + strings.Join(resp.UsedDocs, ", ")))
	}
	if len(resp.Citations) > 0 {
		fmt.Println()
		fmt.Println(replyHeaderStyle.Render("Sources"))
		for _, c := range resp.Citations {
			label := c.Title
			if label == "" {
				label = c.URL
			}
			fmt.Println(citationStyle.Render(fmt.Sprintf("  • %s — %s", label, c.URL)))
		}
	}
}

// renderMarkdown pretty-prints the reply when stdout is a terminal
func renderMarkdown(text string) string {
	if chatPlain || !stdoutIsTerminal() {
		return text + "\n"
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return text + "\n"
	}
	out, err := renderer.Render(text)
	if err != nil {
		return text + "\n"
	}
	return out
}

func stdoutIsTerminal() bool {
	stat, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// cacheConversation stores the just-updated conversation for offline use.
// Best effort: a cache failure never fails the chat.
func cacheConversation(app *appContext, binder *internal.Binder) {
	id := binder.ConversationID()
	if id <= 0 {
		return
	}
	cache := internal.NewConvCache(app.cfg.ConvCacheDir())
	conv := &internal.Conversation{
		ID:       id,
		Messages: binder.Messages(),
	}
	if err := cache.Save(conv, app.identity.Namespace()); err != nil {
		internal.LogWarn("failed to cache conversation %d: %v", id, err)
	}
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().Int64VarP(&chatConversationID, "conversation", "c", 0, "Continue an existing conversation")
	chatCmd.Flags().StringSliceVarP(&chatAttachments, "attach", "a", nil, "Attach a file (repeatable)")
	chatCmd.Flags().BoolVarP(&chatWebSearch, "web", "w", false, "Answer from a live web search")
	chatCmd.Flags().BoolVar(&chatPlain, "plain", false, "Disable markdown rendering")
}
