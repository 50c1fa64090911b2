package cmd

import (
	"fmt"
	"strings"

	"chatctl/internal"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var (
	showCached bool
)

var (
	userStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39"))

	assistantStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	chipStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("135")).
			Italic(true)
)

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a conversation",
	Long: `Show the messages of a conversation, with attachment and document
annotations restored from the local cache.

With --cached the conversation comes from the local cache instead of the
server, so it works offline.`,
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

		meta, err := internal.OpenMetaCache(app.cfg.MetaDBPath())
		if err != nil {
			return fmt.Errorf("failed to open meta cache: %w", err)
		}
		defer func() { _ = meta.Close() }()

		var messages []internal.Message
		if showCached {
			cache := internal.NewConvCache(app.cfg.ConvCacheDir())
			conv, err := cache.Load(id)
			if err != nil {
				return fmt.Errorf("conversation %d is not cached: %w", id, err)
			}
			messages = conv.Messages
			meta.MergeOnto(id, messages)
		} else {
			if err := app.requireLogin(); err != nil {
				return err
			}
			dispatcher := internal.NewDispatcher(app.api, app.docqa, app.identity)
			binder := internal.NewBinder(app.api, meta, dispatcher)
			if err := binder.Bind(cmd.Context(), id); err != nil {
				return err
			}
			messages = binder.Messages()
		}

		displayMessages(id, messages)
		return nil
	},
}

func displayMessages(id int64, messages []internal.Message) {
	fmt.Println(headerStyle.Render(fmt.Sprintf("💬 Conversation %d — %d message(s)", id, len(messages))))
	fmt.Println()

	for _, msg := range messages {
		label := msg.Role
		style := assistantStyle
		if msg.Role == "user" {
			style = userStyle
		}
		if msg.Timestamp != "" {
			label += " (" + msg.Timestamp + ")"
		}
		fmt.Println(style.Render(label))
		fmt.Println(msg.Content)

		if len(msg.Attachments) > 0 {
			names := make([]string, 0, len(msg.Attachments))
			for _, att := range msg.Attachments {
				names = append(names, att.Name)
			}
			fmt.Println(chipStyle.Render("📎 " + strings.Join(names, ", ")))
		}
		if len(msg.UsedDocs) > 0 {
			fmt.Println(chipStyle.Render("📄 " + strings.Join(msg.UsedDocs, ", ")))
		}
		for _, c := range msg.Citations {
			fmt.Println(chipStyle.Render("🔗 " + c.URL))
		}
		fmt.Println()
	}
}

func init() {
	rootCmd.AddCommand(showCmd)
	showCmd.Flags().BoolVar(&showCached, "cached", false, "Read from the local cache (works offline)")
}
