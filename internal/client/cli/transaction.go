package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/HolyWalley/money-sub000/internal/client/projection"
	"github.com/HolyWalley/money-sub000/internal/models"
)

func (c *Cli) runTransaction(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("missing subcommand. Usage: moneysync tx <add|list|delete>")
	}

	switch args[0] {
	case "add":
		return c.runTransactionAdd(ctx, args[1:])
	case "list":
		return c.runTransactionList(ctx, args[1:])
	case "delete":
		return c.runTransactionDelete(ctx, args[1:])
	default:
		return fmt.Errorf("unknown tx subcommand: %s", args[0])
	}
}

func (c *Cli) runTransactionAdd(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: moneysync tx add <wallet-id> <amount> [category-id] [note]")
	}

	amount, err := parseAmount(args[1])
	if err != nil {
		return fmt.Errorf("invalid amount: %w", err)
	}

	categoryID := ""
	if len(args) > 2 {
		categoryID = args[2]
	}
	note := ""
	if len(args) > 3 {
		note = strings.Join(args[3:], " ")
	}

	tx, err := c.dataService.CreateTransaction(ctx, &models.Transaction{
		WalletID:   args[0],
		CategoryID: categoryID,
		Amount:     amount,
		Note:       note,
	})
	if err != nil {
		return err
	}

	c.io.Printf("Transaction recorded: %.2f (%s)\n", tx.Amount, tx.ID)
	return nil
}

func (c *Cli) runTransactionList(ctx context.Context, args []string) error {
	filter := projection.TransactionFilter{}
	if len(args) > 0 {
		filter.WalletID = args[0]
	}

	views, err := c.queries.TransactionViews(ctx, filter)
	if err != nil {
		return err
	}

	if len(views) == 0 {
		c.io.Println("No transactions found.")
		return nil
	}

	c.io.Printf("Found %d transaction(s):\n", len(views))
	c.io.Println("")
	for i, view := range views {
		c.io.Printf("%d. %s  %+.2f\n", i+1, view.Date.Format("2006-01-02"), view.Amount)
		c.io.Printf("   ID:       %s\n", view.ID)
		if view.WalletName != "" {
			c.io.Printf("   Wallet:   %s\n", view.WalletName)
		}
		if view.CategoryName != "" {
			c.io.Printf("   Category: %s\n", view.CategoryName)
		}
		if view.Note != "" {
			c.io.Printf("   Note:     %s\n", view.Note)
		}
		c.io.Println("")
	}
	return nil
}

func (c *Cli) runTransactionDelete(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: moneysync tx delete <id>")
	}
	if err := c.dataService.DeleteTransaction(ctx, args[0]); err != nil {
		return err
	}
	c.io.Printf("Transaction deleted: %s\n", args[0])
	return nil
}
