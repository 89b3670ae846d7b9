package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/huh"

	"github.com/thomasluizon/orbit-api-sub001/internal/auth"
	"github.com/thomasluizon/orbit-api-sub001/internal/cli"
	"github.com/thomasluizon/orbit-api-sub001/internal/constants"
	"github.com/thomasluizon/orbit-api-sub001/internal/utils"
)

type UserCmd struct {
	Add UserAddCmd `cmd:"" help:"Create an account."`
}

// UserAddCmd creates an account. Missing fields are asked for in a form.
type UserAddCmd struct {
	Email    string `help:"Email address."`
	Password string `help:"Password (prompted when omitted)." env:"ORBIT_PASSWORD"`
	Timezone string `help:"IANA timezone, e.g. Europe/Lisbon." default:"${timezone}"`
}

func (c *UserAddCmd) Run(ctx *cli.Context) error {
	if c.Email == "" || c.Password == "" {
		if err := c.form().Run(); err != nil {
			return err
		}
	}

	store, err := ctx.OpenStore()
	if err != nil {
		return err
	}
	defer store.Close()

	user, err := auth.CreateUser(context.Background(), store, c.Email, c.Password, c.Timezone, time.Now())
	if err != nil {
		return err
	}
	fmt.Printf("Created user %s (%s)\n", user.Email, user.Timezone)
	return nil
}

func (c *UserAddCmd) form() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Email").
				Value(&c.Email).
				Validate(func(s string) error {
					if !strings.Contains(s, "@") {
						return errors.New("enter a valid email address")
					}
					return nil
				}),
			huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(&c.Password).
				Validate(func(s string) error {
					if len(s) < constants.MinPasswordLength {
						return fmt.Errorf("at least %d characters", constants.MinPasswordLength)
					}
					return nil
				}),
			huh.NewInput().
				Title("Timezone").
				Value(&c.Timezone).
				Validate(func(s string) error {
					if !utils.ValidateTimezone(s) {
						return errors.New("unknown timezone")
					}
					return nil
				}),
		),
	)
}
