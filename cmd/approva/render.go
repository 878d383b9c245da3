package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"approva/internal/core"
)

func renderExpensePage(page core.Page[core.Expense]) {
	if len(page.Content) == 0 {
		fmt.Println("No expenses.")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDATE\tAMOUNT\tSTATUS\tCATEGORY\tDESCRIPTION")
	for _, e := range page.Content {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			e.ID, e.ExpenseDate, e.Amount, e.Status, e.CategoryName, e.Description)
	}
	w.Flush()

	fmt.Printf("\nPage %d of %d (%d total)\n", page.Number+1, page.TotalPages, page.TotalElements)
}

func renderExpenseDetail(e core.Expense) {
	fmt.Printf("Expense %d\n", e.ID)
	fmt.Printf("  Description: %s\n", e.Description)
	fmt.Printf("  Amount:      %s\n", e.Amount)
	fmt.Printf("  Date:        %s\n", e.ExpenseDate)
	fmt.Printf("  Status:      %s\n", e.Status)
	fmt.Printf("  Category:    %s\n", e.CategoryName)
	fmt.Printf("  Owner:       %s\n", e.Username)
	if len(e.Attachments) > 0 {
		fmt.Println("  Attachments:")
		for _, a := range e.Attachments {
			fmt.Printf("    [%d] %s (%s)\n", a.ID, a.FileName, a.FileType)
		}
	}
}

func renderHistory(entries []core.ApprovalHistoryEntry) {
	if len(entries) == 0 {
		fmt.Println("No history.")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "WHEN\tBY\tFROM\tTO\tCOMMENT")
	for _, h := range entries {
		from := string(h.StatusBefore)
		if from == "" {
			from = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			h.ActionDate.Format("2006-01-02 15:04"), h.ApproverUsername, from, h.StatusAfter, h.Comments)
	}
	w.Flush()
}
