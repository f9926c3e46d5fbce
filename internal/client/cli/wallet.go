package cli

import (
	"context"
	"fmt"

	"github.com/HolyWalley/money-sub000/internal/models"
)

func (c *Cli) runWallet(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("missing subcommand. Usage: moneysync wallet <add|list|delete>")
	}

	switch args[0] {
	case "add":
		return c.runWalletAdd(ctx, args[1:])
	case "list":
		return c.runWalletList(ctx)
	case "delete":
		return c.runWalletDelete(ctx, args[1:])
	default:
		return fmt.Errorf("unknown wallet subcommand: %s", args[0])
	}
}

func (c *Cli) runWalletAdd(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: moneysync wallet add <name> <currency> [balance]")
	}

	balance := 0.0
	if len(args) > 2 {
		var err error
		balance, err = parseAmount(args[2])
		if err != nil {
			return fmt.Errorf("invalid balance: %w", err)
		}
	}

	wallet, err := c.dataService.CreateWallet(ctx, &models.Wallet{
		Name:     args[0],
		Currency: args[1],
		Balance:  balance,
	})
	if err != nil {
		return err
	}

	c.io.Printf("Wallet created: %s (%s)\n", wallet.Name, wallet.ID)
	return nil
}

func (c *Cli) runWalletList(ctx context.Context) error {
	wallets, err := c.queries.Wallets(ctx)
	if err != nil {
		return err
	}

	if len(wallets) == 0 {
		c.io.Println("No wallets found.")
		c.io.Println("Use 'moneysync wallet add <name> <currency>' to create one.")
		return nil
	}

	c.io.Printf("Found %d wallet(s):\n", len(wallets))
	c.io.Println("")
	for i, wallet := range wallets {
		balance, err := c.queries.WalletBalance(ctx, wallet.ID)
		if err != nil {
			return err
		}
		c.io.Printf("%d. %s\n", i+1, wallet.Name)
		c.io.Printf("   ID:      %s\n", wallet.ID)
		c.io.Printf("   Balance: %.2f %s\n", balance, wallet.Currency)
		c.io.Println("")
	}
	return nil
}

func (c *Cli) runWalletDelete(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: moneysync wallet delete <id>")
	}
	if err := c.dataService.DeleteWallet(ctx, args[0]); err != nil {
		return err
	}
	c.io.Printf("Wallet deleted: %s\n", args[0])
	return nil
}
