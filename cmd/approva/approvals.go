package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"approva/internal/approval"
	"approva/internal/cli"
	"approva/internal/core"
	"approva/internal/log"
)

func cmdPending(args []string) int {
	var (
		page int
		size int
		sort string
	)
	return withApp("pending", args, func(f *pflag.FlagSet) {
		f.IntVar(&page, "page", 0, "zero-based page number")
		f.IntVar(&size, "size", 0, "page size (default from config)")
		f.StringVar(&sort, "sort", "", "sort expression (default oldest first)")
	}, func(ctx context.Context, app *cli.App, f *pflag.FlagSet) error {
		_, coord := services(app)
		if size == 0 {
			size = app.Config.PageSize
		}
		result, err := coord.ListPending(ctx, page, size, sort)
		if err != nil {
			return err
		}
		renderExpensePage(result)
		return nil
	})
}

func cmdApprove(args []string) int {
	var comment string
	return withApp("approve", args, func(f *pflag.FlagSet) {
		f.StringVarP(&comment, "comment", "c", "", "optional comment")
	}, func(ctx context.Context, app *cli.App, f *pflag.FlagSet) error {
		return decide(ctx, app, f, core.ActionApprove, comment)
	})
}

func cmdReject(args []string) int {
	var comment string
	return withApp("reject", args, func(f *pflag.FlagSet) {
		f.StringVarP(&comment, "comment", "c", "", "mandatory reason for the rejection")
	}, func(ctx context.Context, app *cli.App, f *pflag.FlagSet) error {
		return decide(ctx, app, f, core.ActionReject, comment)
	})
}

func decide(ctx context.Context, app *cli.App, f *pflag.FlagSet, action core.Action, comment string) error {
	id, err := positionalID(f, "expense id")
	if err != nil {
		return err
	}
	_, coord := services(app)
	decided, err := coord.Decide(ctx, id, action, comment)
	if err != nil {
		return err
	}
	fmt.Printf("Expense %d is now %s\n", decided.ID, decided.Status)
	return nil
}

// cmdWatch polls the pending queue and reports newly arrived expenses
// until interrupted.
func cmdWatch(args []string) int {
	var interval time.Duration
	return withApp("watch", args, func(f *pflag.FlagSet) {
		f.DurationVar(&interval, "interval", 0, "poll interval (default from config)")
	}, func(ctx context.Context, app *cli.App, f *pflag.FlagSet) error {
		_, coord := services(app)
		if interval == 0 {
			interval = app.Config.WatchInterval
		}
		logger := app.Logger.WithComponent(log.ComponentWatch)

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return watchQueue(gctx, coord, interval, logger)
		})
		if err := g.Wait(); err != nil && err != context.Canceled {
			return err
		}
		fmt.Println("\nStopped watching.")
		return nil
	})
}

func watchQueue(ctx context.Context, coord *approval.Coordinator, interval time.Duration, logger *log.Logger) error {
	seen := make(map[int64]struct{})

	poll := func(announce bool) error {
		page, err := coord.ListPending(ctx, 0, 50, approval.DefaultQueueSort)
		if err != nil {
			return err
		}
		for _, e := range page.Content {
			if _, ok := seen[e.ID]; ok {
				continue
			}
			seen[e.ID] = struct{}{}
			if announce {
				fmt.Printf("[%s] new pending expense %d: %s %s from %s\n",
					time.Now().Format("15:04:05"), e.ID, e.Amount, e.Description, e.Username)
			}
		}
		return nil
	}

	// Prime the seen set so only arrivals after startup are announced.
	if err := poll(false); err != nil {
		return err
	}
	fmt.Printf("Watching the pending queue every %s (Ctrl-C to stop)\n", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := poll(true); err != nil {
				// Transient poll failures keep the watcher alive.
				logger.WarnContext(ctx, "poll failed", log.FieldError, err.Error())
			}
		}
	}
}
