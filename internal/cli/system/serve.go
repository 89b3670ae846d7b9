package system

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/thomasluizon/orbit-api-sub001/internal/api"
	"github.com/thomasluizon/orbit-api-sub001/internal/cli"
	"github.com/thomasluizon/orbit-api-sub001/internal/logger"
)

// ServeCmd runs the HTTP API until interrupted.
type ServeCmd struct {
	Listen string `help:"Listen address. Overrides server.listen."`
}

func (c *ServeCmd) Run(ctx *cli.Context) error {
	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := ctx.OpenStore()
	if err != nil {
		return err
	}
	defer store.Close()

	svc, err := ctx.NewServices(runCtx, store, true)
	if err != nil {
		return err
	}
	if svc.Auth == nil {
		return fmt.Errorf("a JWT secret is required to serve; set ORBIT_JWT_SECRET or run 'orbit keyring set jwt-secret'")
	}
	// Background fact extraction must finish before the store closes.
	defer svc.Pipeline.Wait()

	srv := api.NewServer(api.Deps{
		Auth:          svc.Auth,
		Habits:        svc.Habits,
		Chat:          svc.Chat,
		Bulk:          svc.Bulk,
		Facts:         svc.Facts,
		MaxImageBytes: ctx.Config.Server.MaxImageBytes,
	})

	addr := ctx.Config.Server.Listen
	if c.Listen != "" {
		addr = c.Listen
	}
	logger.Info("Starting Orbit API", "addr", addr, "interpreter", ctx.Config.LLM.InterpretProvider,
		"extractor", ctx.Config.LLM.ExtractProvider, "database", ctx.Config.Database.Driver)
	return srv.Run(runCtx, addr)
}
