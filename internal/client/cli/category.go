package cli

import (
	"context"
	"fmt"

	"github.com/HolyWalley/money-sub000/internal/models"
)

func (c *Cli) runCategory(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("missing subcommand. Usage: moneysync category <add|list|delete>")
	}

	switch args[0] {
	case "add":
		return c.runCategoryAdd(ctx, args[1:])
	case "list":
		return c.runCategoryList(ctx, args[1:])
	case "delete":
		return c.runCategoryDelete(ctx, args[1:])
	default:
		return fmt.Errorf("unknown category subcommand: %s", args[0])
	}
}

func (c *Cli) runCategoryAdd(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: moneysync category add <name> <income|expense> [icon]")
	}

	icon := ""
	if len(args) > 2 {
		icon = args[2]
	}

	category, err := c.dataService.CreateCategory(ctx, &models.Category{
		Name: args[0],
		Type: args[1],
		Icon: icon,
	})
	if err != nil {
		return err
	}

	c.io.Printf("Category created: %s (%s)\n", category.Name, category.ID)
	return nil
}

func (c *Cli) runCategoryList(ctx context.Context, args []string) error {
	typeFilter := ""
	if len(args) > 0 {
		typeFilter = args[0]
	}

	categories, err := c.queries.Categories(ctx, typeFilter)
	if err != nil {
		return err
	}

	if len(categories) == 0 {
		c.io.Println("No categories found.")
		return nil
	}

	c.io.Printf("Found %d categor(ies):\n", len(categories))
	c.io.Println("")
	for i, category := range categories {
		c.io.Printf("%d. %s [%s]\n", i+1, category.Name, category.Type)
		c.io.Printf("   ID: %s\n", category.ID)
		c.io.Println("")
	}
	return nil
}

func (c *Cli) runCategoryDelete(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: moneysync category delete <id>")
	}
	if err := c.dataService.DeleteCategory(ctx, args[0]); err != nil {
		return err
	}
	c.io.Printf("Category deleted: %s\n", args[0])
	return nil
}
