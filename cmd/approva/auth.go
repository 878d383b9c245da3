package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"approva/internal/api"
	"approva/internal/cli"
	"approva/internal/core"
	"approva/internal/handoff"
	"approva/internal/log"
)

func cmdLogin(args []string) int {
	var (
		username string
		password string
		google   bool
	)
	return withApp("login", args, func(f *pflag.FlagSet) {
		f.StringVarP(&username, "user", "u", "", "username or email")
		f.StringVarP(&password, "password", "p", "", "password (prompted when omitted)")
		f.BoolVar(&google, "google", false, "sign in through Google instead of a password")
	}, func(ctx context.Context, app *cli.App, f *pflag.FlagSet) error {
		var (
			user core.SessionUser
			err  error
		)
		if google {
			user, err = oauthLogin(ctx, app)
		} else {
			if username == "" {
				username, err = promptLine("Username: ")
				if err != nil {
					return err
				}
			}
			if password == "" {
				password, err = promptLine("Password: ")
				if err != nil {
					return err
				}
			}
			user, err = app.Session.LoginWithPassword(ctx, username, password)
		}
		if err != nil {
			return err
		}
		fmt.Printf("Logged in as %s (%s)\n", user.DisplayName(), strings.Join(user.RoleSet().Names(), ", "))
		return nil
	})
}

// oauthLogin runs the browser hand-off: open a loopback listener, print
// the authorization URL, wait for the redirect and adopt the credential.
func oauthLogin(ctx context.Context, app *cli.App) (core.SessionUser, error) {
	ch, err := handoff.Open(app.Config.OAuthCallbackPort, app.Logger)
	if err != nil {
		return core.SessionUser{}, err
	}
	defer ch.Close()

	redirect := ch.RedirectURL(app.Config.OAuthCallbackPort)
	authURL := app.Gateway.AuthorizationURL("google", redirect, ch.State())
	fmt.Println("Open this URL in your browser to continue:")
	fmt.Println("  " + authURL)

	waitCtx, cancel := context.WithTimeout(ctx, app.Config.OAuthTimeout)
	defer cancel()

	msg, err := ch.Await(waitCtx)
	if err != nil {
		return core.SessionUser{}, err
	}
	if msg.Kind == handoff.KindError {
		return core.SessionUser{}, fmt.Errorf("authorization failed: %s", msg.Reason)
	}
	return app.Session.CompleteOAuth(ctx, msg.Credential)
}

func cmdLogout(args []string) int {
	return withApp("logout", args, nil, func(ctx context.Context, app *cli.App, f *pflag.FlagSet) error {
		app.Session.Logout(ctx)
		fmt.Println("Logged out.")
		return nil
	})
}

func cmdWhoami(args []string) int {
	return withApp("whoami", args, nil, func(ctx context.Context, app *cli.App, f *pflag.FlagSet) error {
		user, ok := app.Session.CurrentUser()
		if !ok {
			fmt.Println("Not logged in.")
			return nil
		}

		// Refresh the profile and the expense count in parallel.
		var (
			profile  core.SessionUser
			expenses core.Page[core.Expense]
		)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			profile, err = app.Gateway.Me(gctx)
			return err
		})
		g.Go(func() error {
			var err error
			expenses, err = app.Gateway.MyExpenses(gctx, 0, 1, app.Config.DefaultSort)
			return err
		})
		if err := g.Wait(); err != nil {
			// The session view is still valid offline.
			app.Logger.WarnContext(ctx, "profile refresh failed", log.FieldError, err.Error())
			printSessionUser(user, -1)
			return nil
		}

		app.Session.RefineProfile(ctx, profile)
		if refreshed, ok := app.Session.CurrentUser(); ok {
			user = refreshed
		}
		printSessionUser(user, expenses.TotalElements)
		return nil
	})
}

func printSessionUser(user core.SessionUser, totalExpenses int64) {
	fmt.Printf("User:     %s\n", user.DisplayName())
	fmt.Printf("Username: %s\n", user.Username)
	if user.Email != "" {
		fmt.Printf("Email:    %s\n", user.Email)
	}
	fmt.Printf("Roles:    %s\n", strings.Join(user.RoleSet().Names(), ", "))
	if totalExpenses >= 0 {
		fmt.Printf("Expenses: %d\n", totalExpenses)
	}
}

func cmdRegister(args []string) int {
	var input api.RegisterInput
	return withApp("register", args, func(f *pflag.FlagSet) {
		f.StringVarP(&input.Username, "user", "u", "", "username")
		f.StringVarP(&input.Email, "email", "e", "", "email address")
		f.StringVarP(&input.Password, "password", "p", "", "password")
		f.StringVar(&input.FirstName, "first-name", "", "first name")
		f.StringVar(&input.LastName, "last-name", "", "last name")
	}, func(ctx context.Context, app *cli.App, f *pflag.FlagSet) error {
		if input.Username == "" || input.Email == "" || input.Password == "" {
			return fmt.Errorf("--user, --email and --password are required")
		}
		message, err := app.Gateway.Register(ctx, input)
		if err != nil {
			return err
		}
		fmt.Println(message)
		return nil
	})
}

func cmdProfile(args []string) int {
	var first, last string
	return withApp("profile", args, func(f *pflag.FlagSet) {
		f.StringVar(&first, "first-name", "", "new first name")
		f.StringVar(&last, "last-name", "", "new last name")
	}, func(ctx context.Context, app *cli.App, f *pflag.FlagSet) error {
		if !app.Session.IsAuthenticated() {
			return fmt.Errorf("not logged in")
		}

		if first == "" && last == "" {
			profile, err := app.Gateway.Me(ctx)
			if err != nil {
				return err
			}
			app.Session.RefineProfile(ctx, profile)
			printSessionUser(profile, -1)
			return nil
		}

		updated, err := app.Gateway.UpdateMe(ctx, api.ProfileUpdate{FirstName: first, LastName: last})
		if err != nil {
			return err
		}
		app.Session.RefineProfile(ctx, updated)
		fmt.Println("Profile updated.")
		printSessionUser(updated, -1)
		return nil
	})
}

func promptLine(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}
