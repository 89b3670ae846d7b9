package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/thomasluizon/orbit-api-sub001/internal/auth"
	"github.com/thomasluizon/orbit-api-sub001/internal/bulk"
	"github.com/thomasluizon/orbit-api-sub001/internal/chat"
	"github.com/thomasluizon/orbit-api-sub001/internal/config"
	"github.com/thomasluizon/orbit-api-sub001/internal/facts"
	"github.com/thomasluizon/orbit-api-sub001/internal/habits"
	"github.com/thomasluizon/orbit-api-sub001/internal/interpreter"
	"github.com/thomasluizon/orbit-api-sub001/internal/models"
	"github.com/thomasluizon/orbit-api-sub001/internal/storage"
	"github.com/thomasluizon/orbit-api-sub001/internal/storage/postgres"
	"github.com/thomasluizon/orbit-api-sub001/internal/storage/sqlite"
)

// Context is handed to every command's Run method.
type Context struct {
	ConfigPath string
	Config     config.Config
}

// NewStore builds the configured provider without opening it. PostgreSQL
// connection strings may only carry a password when they come from the
// keyring.
func NewStore(db config.DatabaseConfig) (storage.Provider, error) {
	switch db.Driver {
	case config.DriverPostgres:
		if db.DSN == "" {
			return nil, errors.New("database.dsn is required for postgres")
		}
		if !db.FromKeyring {
			if _, err := postgres.ValidateConnString(db.DSN); errors.Is(err, postgres.ErrEmbeddedCredentials) {
				return nil, errors.New("postgres connection strings must not embed a password; use the keyring, PGPASSWORD or .pgpass")
			}
		}
		return postgres.New(db.DSN), nil
	default:
		return sqlite.NewStore(db.DSN), nil
	}
}

// OpenStore builds and loads the configured provider. Callers close it.
func (c *Context) OpenStore() (storage.Provider, error) {
	store, err := NewStore(c.Config.Database)
	if err != nil {
		return nil, err
	}
	if err := store.Load(); err != nil {
		return nil, err
	}
	return store, nil
}

// Services bundles everything built on top of one store.
type Services struct {
	Auth     *auth.Service
	Habits   *habits.Service
	Chat     *chat.Engine
	Bulk     *bulk.Gateway
	Facts    *facts.Service
	Pipeline *facts.Pipeline
}

// NewServices wires the domain services. The LLM clients are only built when
// withLLM is set so that commands like "facts list" work without an API key.
func (c *Context) NewServices(ctx context.Context, store storage.Provider, withLLM bool) (*Services, error) {
	svc := &Services{
		Habits: habits.NewService(store),
		Bulk:   bulk.NewGateway(store),
		Facts:  facts.NewService(store),
	}

	if c.Config.Server.JWTSecret != "" {
		ttl := config.Duration(c.Config.Server.TokenTTL, 0)
		a, err := auth.NewService(store, c.Config.Server.JWTSecret, ttl)
		if err != nil {
			return nil, err
		}
		svc.Auth = a
	}

	if withLLM {
		interp, extractor, err := interpreter.New(ctx, c.Config.LLM)
		if err != nil {
			return nil, fmt.Errorf("failed to set up language model: %w", err)
		}
		svc.Pipeline = facts.NewPipeline(store, extractor, c.Config.Facts.Async,
			config.Duration(c.Config.Facts.Timeout, 0))
		svc.Chat = chat.NewEngine(store, interp, svc.Pipeline)
	}
	return svc, nil
}

// LookupUser finds a user by email for the local commands, which act on
// behalf of one account without a token.
func LookupUser(ctx context.Context, repo storage.Repository, email string) (models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return models.User{}, errors.New("--user is required (or set ORBIT_USER)")
	}
	u, err := repo.GetUserByEmail(ctx, email)
	if err != nil {
		return models.User{}, fmt.Errorf("user %s: %w", email, err)
	}
	return u, nil
}

// UserFlag selects the account a local command acts for.
type UserFlag struct {
	User string `help:"Email of the account to act for." env:"ORBIT_USER" short:"u"`
}

// Session is an open store, the services on it and the acting user.
type Session struct {
	*Services
	Store storage.Provider
	User  models.User
}

// Open loads the store, wires the services and resolves email to a user.
func (c *Context) Open(ctx context.Context, email string, withLLM bool) (*Session, error) {
	store, err := c.OpenStore()
	if err != nil {
		return nil, err
	}
	svc, err := c.NewServices(ctx, store, withLLM)
	if err != nil {
		store.Close()
		return nil, err
	}
	user, err := LookupUser(ctx, store, email)
	if err != nil {
		store.Close()
		return nil, err
	}
	return &Session{Services: svc, Store: store, User: user}, nil
}

// Close waits for background fact extraction, then closes the store.
func (s *Session) Close() error {
	if s.Pipeline != nil {
		s.Pipeline.Wait()
	}
	return s.Store.Close()
}

// FindHabit matches ref against habit ids, then titles case-insensitively.
func FindHabit(list []models.Habit, ref string) (models.Habit, error) {
	ref = strings.TrimSpace(ref)
	for _, h := range list {
		if h.ID == ref {
			return h, nil
		}
	}
	for _, h := range list {
		if strings.EqualFold(h.Title, ref) {
			return h, nil
		}
	}
	return models.Habit{}, fmt.Errorf("habit %q not found", ref)
}
