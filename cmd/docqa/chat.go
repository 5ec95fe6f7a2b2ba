package main

import (
	"path/filepath"

	"github.com/akolanti/docqa/internal/tui"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with your notes in the terminal",
	Long: `Open an interactive chat over the indexed document.

Controls:
  Enter         ask
  PgUp/PgDn     scroll
  Esc, Ctrl+C   quit`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	app, p, err := openPipeline(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	service, err := app.ChatService(ctx, p)
	if err != nil {
		return err
	}

	title := "docqa · " + filepath.Base(cfg.Document.Path)
	program := tea.NewProgram(tui.New(ctx, service, title), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err = program.Run()
	return err
}
