package system

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/thomasluizon/orbit-api-sub001/internal/cli"
	"github.com/thomasluizon/orbit-api-sub001/internal/config"
	"github.com/thomasluizon/orbit-api-sub001/internal/storage"
)

type DoctorCmd struct{}

type check struct {
	name string
	// needsDB checks are skipped when the database cannot be opened.
	needsDB bool
	run     func(ctx context.Context, c *cli.Context, store storage.Provider) error
}

var checks = []check{
	{"Schema version", true, checkSchemaVersion},
	{"Habit hierarchy", true, checkHabitHierarchy},
	{"JWT secret", false, checkJWTSecret},
	{"Language model", false, checkLLM},
	{"Clock/timezone", false, func(context.Context, *cli.Context, storage.Provider) error { return checkClockTimezone() }},
}

func (cmd *DoctorCmd) Run(c *cli.Context) error {
	ctx := context.Background()
	fmt.Println("Running diagnostics...")
	fmt.Println()

	hasError := false
	store, err := c.OpenStore()
	if err != nil {
		fmt.Printf("❌ Database reachable: FAIL\n")
		fmt.Printf("   Error: %v\n", err)
		hasError = true
	} else {
		defer store.Close()
		fmt.Printf("✓ Database reachable: OK\n")
	}

	for _, ch := range checks {
		if ch.needsDB && store == nil {
			fmt.Printf("⊘ %s: SKIPPED (database not reachable)\n", ch.name)
			continue
		}
		if err := ch.run(ctx, c, store); err != nil {
			fmt.Printf("❌ %s: FAIL\n", ch.name)
			fmt.Printf("   Error: %v\n", err)
			hasError = true
			continue
		}
		fmt.Printf("✓ %s: OK\n", ch.name)
	}

	fmt.Println()
	if hasError {
		fmt.Println("Diagnostics completed with errors.")
		return errors.New("one or more health checks failed")
	}
	fmt.Println("All diagnostics passed!")
	return nil
}

func checkSchemaVersion(_ context.Context, _ *cli.Context, store storage.Provider) error {
	current, latest, err := store.SchemaStatus()
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if current > latest {
		return fmt.Errorf("database schema version (%d) is newer than supported version (%d)", current, latest)
	}
	if current < latest {
		return fmt.Errorf("migrations incomplete: current version %d, latest version %d", current, latest)
	}
	return nil
}

type dbStore interface {
	GetDB() *sql.DB
}

// checkHabitHierarchy looks for active habits under a deactivated parent,
// which deactivation is supposed to cascade to.
func checkHabitHierarchy(ctx context.Context, _ *cli.Context, store storage.Provider) error {
	s, ok := store.(dbStore)
	if !ok || s.GetDB() == nil {
		return nil
	}
	var n int
	err := s.GetDB().QueryRowContext(ctx, `
		SELECT COUNT(*) FROM habits c
		JOIN habits p ON c.parent_habit_id = p.id
		WHERE c.is_active AND NOT p.is_active`).Scan(&n)
	if err != nil {
		return fmt.Errorf("failed to query habits: %w", err)
	}
	if n > 0 {
		return fmt.Errorf("%d active habit(s) have a deleted parent", n)
	}
	return nil
}

func checkJWTSecret(_ context.Context, c *cli.Context, _ storage.Provider) error {
	if c.Config.Server.JWTSecret == "" {
		return errors.New("no JWT secret configured; set ORBIT_JWT_SECRET or run 'orbit keyring set jwt-secret'")
	}
	return nil
}

func checkLLM(_ context.Context, c *cli.Context, _ storage.Provider) error {
	for _, p := range []string{c.Config.LLM.InterpretProvider, c.Config.LLM.ExtractProvider} {
		switch p {
		case config.ProviderGemini:
			if c.Config.LLM.Gemini.APIKey == "" {
				return errors.New("gemini is selected but no API key is configured; set GEMINI_API_KEY or run 'orbit keyring set gemini-api-key'")
			}
		case config.ProviderOllama:
			if c.Config.LLM.Ollama.URL == "" {
				return errors.New("ollama is selected but llm.ollama.url is empty")
			}
		}
	}
	return nil
}

func checkClockTimezone() error {
	now := time.Now()
	if now.Year() < 2020 || now.Year() > 2100 {
		return fmt.Errorf("system time appears incorrect: %s", now.Format(time.RFC3339))
	}
	if _, err := time.LoadLocation("America/New_York"); err != nil {
		return fmt.Errorf("timezone database unavailable: %w", err)
	}
	return nil
}
