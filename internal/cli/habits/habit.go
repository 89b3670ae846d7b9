package habits

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/thomasluizon/orbit-api-sub001/internal/cli"
	"github.com/thomasluizon/orbit-api-sub001/internal/habits"
	"github.com/thomasluizon/orbit-api-sub001/internal/models"
	"github.com/thomasluizon/orbit-api-sub001/internal/scheduler"
	"github.com/thomasluizon/orbit-api-sub001/internal/utils"
	"github.com/thomasluizon/orbit-api-sub001/internal/validation"
)

type HabitCmd struct {
	Add     HabitAddCmd     `cmd:"" help:"Add a new habit."`
	List    HabitListCmd    `cmd:"" help:"List habits."`
	Log     HabitLogCmd     `cmd:"" help:"Log a habit for a day."`
	Today   HabitTodayCmd   `cmd:"" help:"Show today's habit status."`
	History HabitHistoryCmd `cmd:"" help:"Show habit history (ASCII grid)."`
	Stats   HabitStatsCmd   `cmd:"" help:"Show streaks and completion rates."`
	Delete  HabitDeleteCmd  `cmd:"" help:"Delete a habit and its sub-habits."`
}

type HabitAddCmd struct {
	cli.UserFlag `embed:""`

	Title       string   `arg:"" help:"Habit title."`
	Every       string   `help:"Frequency unit (day, week, month, year). Omit for a one-time habit."`
	Times       int      `help:"Repeat every N units." default:"0"`
	Days        []string `help:"Weekdays, e.g. --days mon,wed,fri." sep:","`
	Bad         bool     `help:"Track a habit to avoid; logs record lapses."`
	Unit        string   `help:"Unit for quantifiable habits, e.g. km."`
	Due         string   `help:"First due date (YYYY-MM-DD, default: today)."`
	Parent      string   `help:"Parent habit title or id."`
	Description string   `help:"Description."`
}

func (c *HabitAddCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	s, err := ctx.Open(bg, c.User, false)
	if err != nil {
		return err
	}
	defer s.Close()

	spec := habits.Spec{
		Title:          c.Title,
		Description:    c.Description,
		FrequencyUnit:  c.Every,
		Days:           c.Days,
		IsBadHabit:     c.Bad,
		IsQuantifiable: c.Unit != "",
		Unit:           c.Unit,
		DueDate:        c.Due,
	}
	if c.Times > 0 {
		spec.FrequencyQuantity = &c.Times
	}

	h, err := s.Habits.Create(bg, s.User.ID, spec)
	if err != nil {
		return err
	}
	if c.Parent != "" {
		list, err := s.Habits.List(bg, s.User.ID, false)
		if err != nil {
			return err
		}
		parent, err := cli.FindHabit(list, c.Parent)
		if err != nil {
			return err
		}
		if h, err = s.Habits.SetParent(bg, s.User.ID, h.ID, &parent.ID); err != nil {
			return err
		}
	}

	fmt.Printf("Added habit: %s (%s, due %s)\n", h.Title, frequencyLabel(h), h.DueDate)
	return nil
}

type HabitListCmd struct {
	cli.UserFlag `embed:""`

	All bool `help:"Include deleted habits."`
}

func (c *HabitListCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	s, err := ctx.Open(bg, c.User, false)
	if err != nil {
		return err
	}
	defer s.Close()

	list, err := s.Habits.List(bg, s.User.ID, c.All)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Println("No habits found.")
		return nil
	}

	for _, line := range treeLines(list) {
		fmt.Println(line)
	}
	return nil
}

// treeLines renders habits with children indented under their parent.
func treeLines(list []models.Habit) []string {
	byID := make(map[string]models.Habit, len(list))
	for _, h := range list {
		byID[h.ID] = h
	}

	var lines []string
	var walk func(h models.Habit, depth int)
	walk = func(h models.Habit, depth int) {
		status := ""
		switch {
		case !h.IsActive:
			status = " [DELETED]"
		case h.IsCompleted:
			status = " [DONE]"
		}
		lines = append(lines, fmt.Sprintf("%s%s  (%s, due %s)%s",
			strings.Repeat("  ", depth), h.Title, frequencyLabel(h), h.DueDate, status))
		for _, id := range h.ChildIDs {
			if child, ok := byID[id]; ok {
				walk(child, depth+1)
			}
		}
	}
	for _, h := range list {
		if h.ParentHabitID != nil {
			if _, ok := byID[*h.ParentHabitID]; ok {
				continue
			}
		}
		walk(h, 0)
	}
	return lines
}

func frequencyLabel(h models.Habit) string {
	label := validation.FormatFrequency(h.FrequencyUnit, h.FrequencyQuantity, h.Days)
	if h.IsBadHabit {
		label += ", avoid"
	}
	return label
}

type HabitLogCmd struct {
	cli.UserFlag `embed:""`

	Habit string   `arg:"" help:"Habit title or id."`
	Date  string   `help:"Date in YYYY-MM-DD format (default: today)." default:""`
	Note  string   `help:"Optional note for this entry." default:""`
	Value *float64 `help:"Value for quantifiable habits."`
}

func (c *HabitLogCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	s, err := ctx.Open(bg, c.User, false)
	if err != nil {
		return err
	}
	defer s.Close()

	list, err := s.Habits.List(bg, s.User.ID, false)
	if err != nil {
		return err
	}
	h, err := cli.FindHabit(list, c.Habit)
	if err != nil {
		return err
	}

	entry, err := s.Habits.Log(bg, s.User.ID, h.ID, models.LogInput{Date: c.Date, Note: c.Note, Value: c.Value})
	if err != nil {
		return err
	}
	fmt.Printf("Logged habit %q for %s\n", h.Title, entry.Date)
	return nil
}

type HabitTodayCmd struct {
	cli.UserFlag `embed:""`
}

func (c *HabitTodayCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	s, err := ctx.Open(bg, c.User, false)
	if err != nil {
		return err
	}
	defer s.Close()

	list, err := s.Habits.List(bg, s.User.ID, false)
	if err != nil {
		return err
	}
	sched, err := scheduler.New(s.User.Timezone, time.Now())
	if err != nil {
		return err
	}
	today := utils.FormatDate(sched.Today())

	fmt.Printf("Habits for %s:\n\n", today)
	recorded, due := 0, 0
	for _, h := range list {
		if h.IsCompleted || h.DueDate > today {
			continue
		}
		due++
		status := "[ ]"
		if h.HasLogOn(today) {
			status = "[x]"
			recorded++
		}
		fmt.Printf("%s %s\n", status, h.Title)
	}
	fmt.Printf("\nRecorded: %d/%d\n", recorded, due)
	return nil
}

type HabitHistoryCmd struct {
	cli.UserFlag `embed:""`

	Days  int    `help:"Number of days to show." default:"14"`
	Habit string `help:"Show history for specific habit only."`
}

const historyNameWidth = 20

func (c *HabitHistoryCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	s, err := ctx.Open(bg, c.User, false)
	if err != nil {
		return err
	}
	defer s.Close()

	list, err := s.Habits.List(bg, s.User.ID, false)
	if err != nil {
		return err
	}
	if c.Habit != "" {
		h, err := cli.FindHabit(list, c.Habit)
		if err != nil {
			return err
		}
		list = []models.Habit{h}
	}
	if len(list) == 0 {
		fmt.Println("No habits found.")
		return nil
	}

	sched, err := scheduler.New(s.User.Timezone, time.Now())
	if err != nil {
		return err
	}
	fmt.Printf("Habit history (last %d days):\n\n", c.Days)
	for _, line := range historyGrid(list, sched.Today(), c.Days) {
		fmt.Println(line)
	}
	return nil
}

// historyGrid renders one row per habit and one column per day ending at end.
func historyGrid(list []models.Habit, end time.Time, days int) []string {
	start := end.AddDate(0, 0, -(days - 1))

	var header strings.Builder
	header.WriteString(fmt.Sprintf("%-*s", historyNameWidth, "Habit"))
	for i := 0; i < days; i++ {
		header.WriteString(fmt.Sprintf(" %5s", start.AddDate(0, 0, i).Format("01/02")))
	}
	lines := []string{header.String(), strings.Repeat("-", historyNameWidth+6*days)}

	for _, h := range list {
		name := h.Title
		if len([]rune(name)) > historyNameWidth {
			name = string([]rune(name)[:historyNameWidth-3]) + "..."
		}
		var row strings.Builder
		row.WriteString(fmt.Sprintf("%-*s", historyNameWidth, name))
		for i := 0; i < days; i++ {
			if h.HasLogOn(utils.FormatDate(start.AddDate(0, 0, i))) {
				row.WriteString("  x   ")
			} else {
				row.WriteString("  .   ")
			}
		}
		lines = append(lines, strings.TrimRight(row.String(), " "))
	}
	return lines
}

type HabitStatsCmd struct {
	cli.UserFlag `embed:""`

	Habit string `arg:"" help:"Habit title or id."`
}

func (c *HabitStatsCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	s, err := ctx.Open(bg, c.User, false)
	if err != nil {
		return err
	}
	defer s.Close()

	list, err := s.Habits.List(bg, s.User.ID, false)
	if err != nil {
		return err
	}
	h, err := cli.FindHabit(list, c.Habit)
	if err != nil {
		return err
	}
	m, err := s.Habits.Metrics(bg, s.User.ID, h.ID)
	if err != nil {
		return err
	}

	fmt.Printf("%s\n", h.Title)
	fmt.Printf("  Current streak:   %d\n", m.CurrentStreak)
	fmt.Printf("  Longest streak:   %d\n", m.LongestStreak)
	fmt.Printf("  Last 7 days:      %.0f%%\n", m.WeeklyCompletionRate)
	fmt.Printf("  Last 30 days:     %.0f%%\n", m.MonthlyCompletionRate)
	fmt.Printf("  Total logs:       %d\n", m.TotalCompletions)
	if m.LastCompletedDate != nil {
		fmt.Printf("  Last logged:      %s\n", *m.LastCompletedDate)
	}
	return nil
}

type HabitDeleteCmd struct {
	cli.UserFlag `embed:""`

	Habit string `arg:"" help:"Habit title or id."`
}

func (c *HabitDeleteCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	s, err := ctx.Open(bg, c.User, false)
	if err != nil {
		return err
	}
	defer s.Close()

	list, err := s.Habits.List(bg, s.User.ID, false)
	if err != nil {
		return err
	}
	h, err := cli.FindHabit(list, c.Habit)
	if err != nil {
		return err
	}
	if err := s.Habits.Deactivate(bg, s.User.ID, h.ID); err != nil {
		return err
	}
	fmt.Printf("Deleted habit: %s\n", h.Title)
	return nil
}
