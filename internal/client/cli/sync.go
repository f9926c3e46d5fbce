package cli

import (
	"context"
	"fmt"
)

func (c *Cli) runSync(ctx context.Context) error {
	c.io.Println("Synchronizing...")

	result, err := c.syncService.Sync(ctx)
	if err != nil {
		return err
	}

	c.io.Println("")
	c.io.Println("Sync completed!")
	c.io.Printf("  Pushed: %d\n", result.Pushed)
	c.io.Printf("  Pulled: %d\n", result.Pulled)
	if result.Bootstrapped {
		c.io.Println("  Document bootstrapped from server state.")
	}
	return nil
}

func (c *Cli) runStorageSize(ctx context.Context) error {
	token, err := c.session.AccessToken(ctx)
	if err != nil {
		return err
	}

	size, err := c.apiClient.StorageSize(ctx, token)
	if err != nil {
		return err
	}

	c.io.Println("=== Server Storage ===")
	c.io.Println("")
	c.io.Printf("Update log:     %d record(s), %d byte(s)\n", size.UpdatesCount, size.UpdatesBytes)
	c.io.Printf("Compiled state: %d byte(s)\n", size.CompiledStateBytes)
	if size.CompiledStateBytes > 0 && size.UpdatesBytes > size.CompiledStateBytes {
		c.io.Println("")
		c.io.Println("The update log is larger than the compiled state.")
		c.io.Println("Consider 'moneysync cleanup' to reclaim server space.")
	}
	return nil
}

func (c *Cli) runCleanup(ctx context.Context) error {
	c.io.Println("This permanently deletes the server update log.")
	c.io.Println("Devices that have never synced will bootstrap from the compiled state.")
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

	resp, err := c.apiClient.CleanupUpdates(ctx, token)
	if err != nil {
		return err
	}

	c.io.Printf("Cleanup completed: %d record(s) deleted.\n", resp.Deleted)
	return nil
}
