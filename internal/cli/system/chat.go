package system

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/thomasluizon/orbit-api-sub001/internal/cli"
	"github.com/thomasluizon/orbit-api-sub001/internal/tui"
)

// ChatCmd opens the interactive client for one user.
type ChatCmd struct {
	cli.UserFlag `embed:""`
}

func (c *ChatCmd) Run(ctx *cli.Context) error {
	session, err := ctx.Open(context.Background(), c.User, true)
	if err != nil {
		return err
	}
	defer session.Close()

	p := tea.NewProgram(tui.NewModel(session.Chat, session.Habits, session.User), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("chat client failed: %w", err)
	}
	return nil
}
