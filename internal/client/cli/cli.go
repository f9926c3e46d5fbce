// Package cli реализует команды клиента moneysync.
package cli

import (
	"context"
	"fmt"

	clientapi "github.com/HolyWalley/money-sub000/internal/client/api"
	"github.com/HolyWalley/money-sub000/internal/client/auth"
	"github.com/HolyWalley/money-sub000/internal/client/data"
	"github.com/HolyWalley/money-sub000/internal/client/iocli"
	"github.com/HolyWalley/money-sub000/internal/client/projection"
	"github.com/HolyWalley/money-sub000/internal/client/storage"
	syncsvc "github.com/HolyWalley/money-sub000/internal/client/sync"
)

type Cli struct {
	io          iocli.IO
	apiClient   clientapi.ClientAPI
	session     auth.Service
	dataService data.Service
	syncService syncsvc.Service
	queries     *projection.Queries
	docs        storage.DocumentStorage
}

func New(
	io iocli.IO,
	apiClient clientapi.ClientAPI,
	session auth.Service,
	dataService data.Service,
	syncService syncsvc.Service,
	queries *projection.Queries,
	docs storage.DocumentStorage,
) *Cli {
	return &Cli{
		io:          io,
		apiClient:   apiClient,
		session:     session,
		dataService: dataService,
		syncService: syncService,
		queries:     queries,
		docs:        docs,
	}
}

// Run выполняет одну команду
func (c *Cli) Run(ctx context.Context, command string, args []string) error {
	switch command {
	case "register":
		return c.runRegister(ctx)
	case "login":
		return c.runLogin(ctx)
	case "logout":
		return c.runLogout(ctx)
	case "status":
		return c.runStatus(ctx)
	case "wallet":
		return c.runWallet(ctx, args)
	case "category":
		return c.runCategory(ctx, args)
	case "tx":
		return c.runTransaction(ctx, args)
	case "recurring":
		return c.runRecurring(ctx, args)
	case "sync":
		return c.runSync(ctx)
	case "storage":
		return c.runStorageSize(ctx)
	case "cleanup":
		return c.runCleanup(ctx)
	case "export":
		return c.runExport(ctx, args)
	case "import":
		return c.runImport(ctx, args)
	default:
		c.PrintUsage()
		return fmt.Errorf("unknown command: %s", command)
	}
}

func (c *Cli) PrintUsage() {
	c.io.Println("MoneySync Client")
	c.io.Println("")
	c.io.Println("Usage:")
	c.io.Println("  moneysync [OPTIONS] COMMAND [ARGS]")
	c.io.Println("")
	c.io.Println("Options:")
	c.io.Println("  --version            Show version information")
	c.io.Println("  --server URL         Server URL (default: http://localhost:8080)")
	c.io.Println("  --db PATH            Path to local database (default: moneysync-client.db)")
	c.io.Println("")
	c.io.Println("Commands:")
	c.io.Println("  register                          Register new user")
	c.io.Println("  login                             Login to server")
	c.io.Println("  logout                            Logout and drop local session")
	c.io.Println("  status                            Show session and sync status")
	c.io.Println("")
	c.io.Println("  wallet add <name> <currency> [balance]")
	c.io.Println("  wallet list")
	c.io.Println("  wallet delete <id>")
	c.io.Println("")
	c.io.Println("  category add <name> <income|expense> [icon]")
	c.io.Println("  category list [income|expense]")
	c.io.Println("  category delete <id>")
	c.io.Println("")
	c.io.Println("  tx add <wallet-id> <amount> [category-id] [note]")
	c.io.Println("  tx list [wallet-id]")
	c.io.Println("  tx delete <id>")
	c.io.Println("")
	c.io.Println("  recurring add <name> <wallet-id> <amount> <schedule>")
	c.io.Println("  recurring list")
	c.io.Println("  recurring apply <id> [date]")
	c.io.Println("  recurring delete <id>")
	c.io.Println("")
	c.io.Println("  sync                              Push local changes and pull server updates")
	c.io.Println("  storage                           Show server storage diagnostics")
	c.io.Println("  cleanup                           Drop server update log (irreversible)")
	c.io.Println("  export [file]                     Stream server backup to file or stdout")
	c.io.Println("  import <file>                     Replace server state with backup file")
	c.io.Println("")
	c.io.Println("Examples:")
	c.io.Println("  moneysync register")
	c.io.Println("  moneysync wallet add Cash EUR 150")
	c.io.Println("  moneysync tx add <wallet-id> -12.50 <category-id> groceries")
	c.io.Println("  moneysync sync")
	c.io.Println("  moneysync export backup.ndjson")
}
