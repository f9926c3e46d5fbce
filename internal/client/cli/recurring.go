package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/HolyWalley/money-sub000/internal/models"
)

func (c *Cli) runRecurring(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("missing subcommand. Usage: moneysync recurring <add|list|apply|delete>")
	}

	switch args[0] {
	case "add":
		return c.runRecurringAdd(ctx, args[1:])
	case "list":
		return c.runRecurringList(ctx)
	case "apply":
		return c.runRecurringApply(ctx, args[1:])
	case "delete":
		return c.runRecurringDelete(ctx, args[1:])
	default:
		return fmt.Errorf("unknown recurring subcommand: %s", args[0])
	}
}

func (c *Cli) runRecurringAdd(ctx context.Context, args []string) error {
	if len(args) < 4 {
		return fmt.Errorf("usage: moneysync recurring add <name> <wallet-id> <amount> <schedule>")
	}

	amount, err := parseAmount(args[2])
	if err != nil {
		return fmt.Errorf("invalid amount: %w", err)
	}

	recurring, err := c.dataService.CreateRecurring(ctx, &models.Recurring{
		Name:     args[0],
		WalletID: args[1],
		Amount:   amount,
		Schedule: args[3],
	})
	if err != nil {
		return err
	}

	c.io.Printf("Recurring created: %s (%s)\n", recurring.Name, recurring.ID)
	return nil
}

func (c *Cli) runRecurringList(ctx context.Context) error {
	recurrings, err := c.queries.Recurrings(ctx)
	if err != nil {
		return err
	}

	if len(recurrings) == 0 {
		c.io.Println("No recurring payments found.")
		return nil
	}

	c.io.Printf("Found %d recurring payment(s):\n", len(recurrings))
	c.io.Println("")
	for i, recurring := range recurrings {
		logs, err := c.queries.RecurringLogs(ctx, recurring.ID)
		if err != nil {
			return err
		}
		c.io.Printf("%d. %s  %+.2f (%s)\n", i+1, recurring.Name, recurring.Amount, recurring.Schedule)
		c.io.Printf("   ID: %s\n", recurring.ID)
		if len(logs) > 0 {
			c.io.Printf("   Last applied: %s\n", logs[0].Date.Format("2006-01-02"))
		}
		c.io.Println("")
	}
	return nil
}

func (c *Cli) runRecurringApply(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: moneysync recurring apply <id> [date]")
	}

	date := time.Now().UTC()
	if len(args) > 1 {
		parsed, err := time.Parse("2006-01-02", args[1])
		if err != nil {
			return fmt.Errorf("invalid date %q, expected YYYY-MM-DD: %w", args[1], err)
		}
		date = parsed
	}

	tx, err := c.dataService.ApplyRecurring(ctx, args[0], date)
	if err != nil {
		return err
	}

	c.io.Printf("Recurring applied: transaction %s for %.2f on %s\n",
		tx.ID, tx.Amount, date.Format("2006-01-02"))
	return nil
}

func (c *Cli) runRecurringDelete(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: moneysync recurring delete <id>")
	}
	if err := c.dataService.DeleteRecurring(ctx, args[0]); err != nil {
		return err
	}
	c.io.Printf("Recurring deleted: %s\n", args[0])
	return nil
}
