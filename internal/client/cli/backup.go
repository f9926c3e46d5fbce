package cli

import (
	"context"
	"fmt"
	"io"
	"os"
)

func (c *Cli) runExport(ctx context.Context, args []string) error {
	token, err := c.session.AccessToken(ctx)
	if err != nil {
		return err
	}

	var out io.Writer = c.io
	if len(args) > 0 {
		file, err := os.Create(args[0])
		if err != nil {
			return fmt.Errorf("failed to create backup file: %w", err)
		}
		defer func() {
			_ = file.Close()
		}()
		out = file
	}

	if err := c.apiClient.ExportBackup(ctx, token, out); err != nil {
		return err
	}

	if len(args) > 0 {
		c.io.Printf("Backup exported to %s\n", args[0])
	}
	return nil
}

func (c *Cli) runImport(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: moneysync import <file>")
	}

	c.io.Println("Import replaces ALL server data for your account with the backup.")
	answer, err := c.io.ReadInput("Continue? [y/N]: ")
	if err != nil {
		return fmt.Errorf("failed to read confirmation: %w", err)
	}
	if answer != "y" && answer != "Y" {
		c.io.Println("Aborted.")
		return nil
	}

	token, err := c.session.AccessToken(ctx)
	if err != nil {
		return err
	}

	file, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open backup file: %w", err)
	}
	defer func() {
		_ = file.Close()
	}()

	resp, err := c.apiClient.ImportBackup(ctx, token, file)
	if err != nil {
		return err
	}

	// Локальный документ больше не соответствует серверному состоянию:
	// сбрасываем его, следующий sync сделает bootstrap
	if err := c.docs.ResetDocument(ctx); err != nil {
		return fmt.Errorf("import succeeded but local reset failed: %w", err)
	}

	c.io.Println("")
	c.io.Printf("Import completed: %d update(s)", resp.UpdatesImported)
	if resp.CompiledStateImported {
		c.io.Printf(", compiled state restored")
	}
	c.io.Println("")
	c.io.Println("Local document reset. Run 'moneysync sync' to bootstrap.")
	return nil
}
