// Command approva is a terminal client for the expense approval service:
// session management, expense submission and the reviewer queue.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"approva/internal/api"
	"approva/internal/approval"
	"approva/internal/cli"
	"approva/internal/expense"
)

type commandFunc func(args []string) int

var commands = map[string]commandFunc{
	"login":    cmdLogin,
	"logout":   cmdLogout,
	"whoami":   cmdWhoami,
	"register": cmdRegister,
	"profile":  cmdProfile,
	"list":     cmdList,
	"show":     cmdShow,
	"submit":   cmdSubmit,
	"edit":     cmdEdit,
	"delete":   cmdDelete,
	"history":  cmdHistory,
	"download": cmdDownload,
	"pending":  cmdPending,
	"approve":  cmdApprove,
	"reject":   cmdReject,
	"watch":    cmdWatch,
}

func main() {
	cli.LoadEnvFile()

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	name, args := os.Args[1], os.Args[2:]
	if name == "help" || name == "-h" || name == "--help" {
		usage()
		return
	}

	run, ok := commands[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", name)
		usage()
		os.Exit(2)
	}
	os.Exit(run(args))
}

func usage() {
	fmt.Fprint(os.Stderr, `Usage: approva <command> [flags]

Session:
  login       Sign in with username/password or --google
  logout      Clear the local session
  whoami      Show the current session
  register    Create an account
  profile     Show or update your profile

Expenses:
  list        List your expenses
  show        Show one expense
  submit      Submit a new expense
  edit        Edit an expense (resubmits if it was rejected)
  delete      Delete an expense
  history     Show an expense's approval history
  download    Download an attachment

Approvals:
  pending     List expenses awaiting your decision
  approve     Approve an expense
  reject      Reject an expense (comment required)
  watch       Poll the pending queue and report changes

Configuration comes from APPROVA_* environment variables or a .env file.
`)
}

// withApp parses flags, wires the client and runs fn with a signal-aware
// context. Every subcommand funnels through here.
func withApp(name string, args []string, bind func(*pflag.FlagSet), fn func(ctx context.Context, app *cli.App, flags *pflag.FlagSet) error) int {
	flags := pflag.NewFlagSet(name, pflag.ContinueOnError)
	verbose := flags.BoolP("verbose", "v", false, "enable debug logging")
	if bind != nil {
		bind(flags)
	}
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	logger := cli.SetupLogger(*verbose)
	cfg := cli.LoadAndValidateConfig(logger)

	ctx, cancel := cli.SignalContext(context.Background())
	defer cancel()

	app, err := cli.NewApp(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	defer app.Close()

	if err := fn(ctx, app, flags); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		if hint := authHint(name, err); hint != "" {
			fmt.Fprintln(os.Stderr, hint)
		}
		return 1
	}
	return 0
}

// authHint suggests re-authentication after a credential rejection. The
// login command is exempt: there a 401 just means wrong credentials, not
// an ended session.
func authHint(command string, err error) string {
	if command == "login" || !errors.Is(err, api.ErrAuthorizationFailure) {
		return ""
	}
	return "Your session has ended. Run 'approva login' to sign in again."
}

// services builds the feature layer on top of a wired app.
func services(app *cli.App) (*expense.Service, *approval.Coordinator) {
	svc := expense.NewService(app.Gateway, app.Session, app.Logger)
	svc.RegisterCaches(app.Caches)
	coord := approval.NewCoordinator(app.Gateway, app.Session, svc, app.Logger)
	return svc, coord
}

// positionalID extracts the required numeric id argument.
func positionalID(flags *pflag.FlagSet, what string) (int64, error) {
	if flags.NArg() < 1 {
		return 0, fmt.Errorf("missing %s argument", what)
	}
	var id int64
	if _, err := fmt.Sscanf(flags.Arg(0), "%d", &id); err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q", what, flags.Arg(0))
	}
	return id, nil
}
