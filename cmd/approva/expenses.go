package main

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"

	"approva/internal/api"
	"approva/internal/cli"
	"approva/internal/core"
)

func cmdList(args []string) int {
	var (
		page int
		size int
		sort string
	)
	return withApp("list", args, func(f *pflag.FlagSet) {
		f.IntVar(&page, "page", 0, "zero-based page number")
		f.IntVar(&size, "size", 0, "page size (default from config)")
		f.StringVar(&sort, "sort", "", "sort expression, e.g. createdAt,desc")
	}, func(ctx context.Context, app *cli.App, f *pflag.FlagSet) error {
		svc, _ := services(app)
		if size == 0 {
			size = app.Config.PageSize
		}
		if sort == "" {
			sort = app.Config.DefaultSort
		}
		result, err := svc.List(ctx, page, size, sort)
		if err != nil {
			return err
		}
		renderExpensePage(result)
		return nil
	})
}

func cmdShow(args []string) int {
	return withApp("show", args, nil, func(ctx context.Context, app *cli.App, f *pflag.FlagSet) error {
		id, err := positionalID(f, "expense id")
		if err != nil {
			return err
		}
		svc, _ := services(app)
		e, err := svc.Get(ctx, id)
		if err != nil {
			return err
		}
		renderExpenseDetail(e)
		return nil
	})
}

func cmdSubmit(args []string) int {
	var (
		description string
		amount      string
		date        string
		categoryID  int64
		filePaths   []string
	)
	return withApp("submit", args, func(f *pflag.FlagSet) {
		f.StringVarP(&description, "description", "d", "", "what the expense was for")
		f.StringVarP(&amount, "amount", "a", "", "amount, e.g. 42.50")
		f.StringVar(&date, "date", "", "expense date, YYYY-MM-DD")
		f.Int64VarP(&categoryID, "category", "c", 0, "category id")
		f.StringArrayVar(&filePaths, "file", nil, "receipt file to attach (repeatable)")
	}, func(ctx context.Context, app *cli.App, f *pflag.FlagSet) error {
		input, err := buildInput(description, amount, date, categoryID)
		if err != nil {
			return err
		}
		uploads, closeFiles, err := openUploads(filePaths)
		if err != nil {
			return err
		}
		defer closeFiles()

		svc, _ := services(app)
		created, err := svc.Submit(ctx, input, uploads)
		if err != nil {
			return err
		}
		fmt.Printf("Submitted expense %d (%s)\n", created.ID, created.Status)
		return nil
	})
}

func cmdEdit(args []string) int {
	var (
		description string
		amount      string
		date        string
		categoryID  int64
		filePaths   []string
	)
	return withApp("edit", args, func(f *pflag.FlagSet) {
		f.StringVarP(&description, "description", "d", "", "what the expense was for")
		f.StringVarP(&amount, "amount", "a", "", "amount, e.g. 42.50")
		f.StringVar(&date, "date", "", "expense date, YYYY-MM-DD")
		f.Int64VarP(&categoryID, "category", "c", 0, "category id")
		f.StringArrayVar(&filePaths, "file", nil, "additional receipt file (repeatable)")
	}, func(ctx context.Context, app *cli.App, f *pflag.FlagSet) error {
		id, err := positionalID(f, "expense id")
		if err != nil {
			return err
		}
		input, err := buildInput(description, amount, date, categoryID)
		if err != nil {
			return err
		}
		uploads, closeFiles, err := openUploads(filePaths)
		if err != nil {
			return err
		}
		defer closeFiles()

		svc, _ := services(app)
		updated, err := svc.Edit(ctx, id, input, uploads)
		if err != nil {
			return err
		}
		fmt.Printf("Updated expense %d (%s)\n", updated.ID, updated.Status)
		return nil
	})
}

func cmdDelete(args []string) int {
	var yes bool
	return withApp("delete", args, func(f *pflag.FlagSet) {
		f.BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	}, func(ctx context.Context, app *cli.App, f *pflag.FlagSet) error {
		id, err := positionalID(f, "expense id")
		if err != nil {
			return err
		}
		if !yes {
			answer, err := promptLine(fmt.Sprintf("Delete expense %d? [y/N] ", id))
			if err != nil {
				return err
			}
			if answer != "y" && answer != "Y" {
				fmt.Println("Aborted.")
				return nil
			}
		}
		svc, _ := services(app)
		if err := svc.Delete(ctx, id); err != nil {
			return err
		}
		fmt.Printf("Deleted expense %d\n", id)
		return nil
	})
}

func cmdHistory(args []string) int {
	return withApp("history", args, nil, func(ctx context.Context, app *cli.App, f *pflag.FlagSet) error {
		id, err := positionalID(f, "expense id")
		if err != nil {
			return err
		}
		svc, _ := services(app)
		entries, err := svc.History(ctx, id)
		if err != nil {
			return err
		}
		renderHistory(entries)
		return nil
	})
}

func cmdDownload(args []string) int {
	var out string
	return withApp("download", args, func(f *pflag.FlagSet) {
		f.StringVarP(&out, "out", "o", "", "output file path")
	}, func(ctx context.Context, app *cli.App, f *pflag.FlagSet) error {
		id, err := positionalID(f, "attachment id")
		if err != nil {
			return err
		}
		if out == "" {
			out = fmt.Sprintf("attachment-%d", id)
		}

		file, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("create %s: %w", out, err)
		}
		defer file.Close()

		svc, _ := services(app)
		n, err := svc.Download(ctx, id, file)
		if err != nil {
			os.Remove(out)
			return err
		}
		fmt.Printf("Wrote %d bytes to %s\n", n, out)
		return nil
	})
}

func buildInput(description, amount, date string, categoryID int64) (core.ExpenseInput, error) {
	cents, err := core.ParseDecimalToCents(amount)
	if err != nil {
		return core.ExpenseInput{}, fmt.Errorf("amount %q: %w", amount, err)
	}
	day, err := core.ParseDate(date)
	if err != nil {
		return core.ExpenseInput{}, fmt.Errorf("date %q: %w", date, err)
	}
	input := core.ExpenseInput{
		Description: description,
		Amount:      core.Money{Cents: cents},
		ExpenseDate: day,
		CategoryID:  categoryID,
	}
	if err := input.Validate(); err != nil {
		return core.ExpenseInput{}, err
	}
	return input, nil
}

// openUploads opens every attachment path. The caller must invoke the
// returned closer after the request completes.
func openUploads(paths []string) ([]api.FileUpload, func(), error) {
	var (
		uploads []api.FileUpload
		opened  []*os.File
	)
	closeAll := func() {
		for _, f := range opened {
			f.Close()
		}
	}
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("open attachment: %w", err)
		}
		opened = append(opened, f)
		uploads = append(uploads, api.FileUpload{
			Name:        filepath.Base(p),
			ContentType: mime.TypeByExtension(filepath.Ext(p)),
			Reader:      f,
		})
	}
	return uploads, closeAll, nil
}
