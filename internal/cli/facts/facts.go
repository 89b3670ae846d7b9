package facts

import (
	"context"
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/thomasluizon/orbit-api-sub001/internal/cli"
)

type FactsCmd struct {
	List   FactsListCmd   `cmd:"" help:"List what Orbit remembers about you." default:"1"`
	Delete FactsDeleteCmd `cmd:"" help:"Forget a fact."`
}

type FactsListCmd struct {
	cli.UserFlag `embed:""`
}

func (c *FactsListCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	s, err := ctx.Open(bg, c.User, false)
	if err != nil {
		return err
	}
	defer s.Close()

	list, err := s.Facts.List(bg, s.User.ID)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Println("No facts stored.")
		return nil
	}

	rows := make([][]string, 0, len(list))
	for _, f := range list {
		category := string(f.Category)
		if category == "" {
			category = "-"
		}
		rows = append(rows, []string{f.ID, category, f.Text})
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "CATEGORY", "FACT").
		Rows(rows...)
	fmt.Println(t.Render())
	return nil
}

type FactsDeleteCmd struct {
	cli.UserFlag `embed:""`

	ID string `arg:"" help:"Fact id (see 'orbit facts list')."`
}

func (c *FactsDeleteCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	s, err := ctx.Open(bg, c.User, false)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.Facts.Delete(bg, s.User.ID, c.ID); err != nil {
		return err
	}
	fmt.Println("Fact deleted.")
	return nil
}
