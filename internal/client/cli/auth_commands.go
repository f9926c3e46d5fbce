package cli

import (
	"context"
	"fmt"

	"github.com/HolyWalley/money-sub000/internal/client/storage"
)

func (c *Cli) runRegister(ctx context.Context) error {
	c.io.Println("=== Register ===")
	c.io.Println("")

	username, err := c.io.ReadInput("Username: ")
	if err != nil {
		return fmt.Errorf("failed to read username: %w", err)
	}

	password, err := c.io.ReadPassword("Password: ")
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	confirm, err := c.io.ReadPassword("Confirm password: ")
	if err != nil {
		return fmt.Errorf("failed to read password confirmation: %w", err)
	}
	if password != confirm {
		return fmt.Errorf("passwords do not match")
	}

	resp, err := c.session.Register(ctx, username, password)
	if err != nil {
		return err
	}

	c.io.Println("")
	c.io.Println("Registration successful!")
	c.io.Printf("User ID: %s\n", resp.UserID)
	c.io.Println("Run 'moneysync login' to start a session.")
	return nil
}

func (c *Cli) runLogin(ctx context.Context) error {
	c.io.Println("=== Login ===")
	c.io.Println("")

	username, err := c.io.ReadInput("Username: ")
	if err != nil {
		return fmt.Errorf("failed to read username: %w", err)
	}
	password, err := c.io.ReadPassword("Password: ")
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}

	auth, err := c.session.Login(ctx, username, password)
	if err != nil {
		return err
	}

	c.io.Println("")
	c.io.Println("Login successful!")
	c.io.Printf("Username: %s\n", auth.Username)
	return nil
}

func (c *Cli) runLogout(ctx context.Context) error {
	if err := c.session.Logout(ctx); err != nil {
		return err
	}
	c.io.Println("Logged out.")
	return nil
}

func (c *Cli) runStatus(ctx context.Context) error {
	c.io.Println("=== Status ===")
	c.io.Println("")

	deviceID, err := c.docs.DeviceID(ctx)
	if err != nil {
		return fmt.Errorf("failed to get device id: %w", err)
	}
	c.io.Printf("Device ID: %s\n", deviceID)

	auth, err := c.session.Current(ctx)
	if err != nil {
		if err == storage.ErrAuthNotFound {
			c.io.Println("Session:   not logged in")
		} else {
			return fmt.Errorf("failed to read session: %w", err)
		}
	} else {
		c.io.Printf("Session:   %s\n", auth.Username)
	}

	pending, err := c.syncService.PendingCount(ctx)
	if err != nil {
		return err
	}
	c.io.Printf("Pending:   %d local change(s) awaiting sync\n", pending)

	cursor, err := c.docs.GetSyncCursor(ctx)
	if err != nil {
		return fmt.Errorf("failed to read sync cursor: %w", err)
	}
	if cursor == nil {
		c.io.Println("Synced:    never (next sync bootstraps from server)")
	} else {
		c.io.Printf("Cursor:    %d\n", *cursor)
	}
	return nil
}
