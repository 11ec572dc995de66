package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"cero/internal/db"
	"cero/internal/ratelimit"
	"cero/internal/session"
)

// CLI runs the periodic maintenance tasks: expired-session removal and
// rate-limit window pruning. Intended for cron.
type CLI struct {
	DBPath string `kong:"name='db',default='cero.db',help='SQLite database path.',env='DB_PATH'"`
	Tables bool   `kong:"help='List tables and row counts instead of cleaning.'"`
}

func main() {
	var cli CLI
	kong.Parse(&cli,
		kong.Name("cero-maint"),
		kong.Description("Database maintenance."),
	)

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	d, err := db.Open(cli.DBPath)
	if err != nil {
		logger.Error("open database", "path", cli.DBPath, "err", err)
		os.Exit(1)
	}
	defer d.Close()

	if cli.Tables {
		rows, err := d.Query(`SELECT name FROM sqlite_master WHERE type='table' ORDER BY name;`)
		if err != nil {
			logger.Error("query tables", "err", err)
			os.Exit(1)
		}
		defer rows.Close()

		fmt.Println("Tables:")
		for rows.Next() {
			var name string
			if err := rows.Scan(&name); err != nil {
				continue
			}
			var n int
			_ = d.QueryRow(`SELECT COUNT(*) FROM ` + name).Scan(&n)
			fmt.Printf(" - %s: %d\n", name, n)
		}
		return
	}

	sessions := session.NewStore(d, logger)
	expired, err := sessions.CleanupExpired()
	if err != nil {
		logger.Error("session cleanup failed", "err", err)
		os.Exit(1)
	}

	limiter := ratelimit.New(d, logger)
	pruned, err := limiter.Cleanup()
	if err != nil {
		logger.Error("rate limit cleanup failed", "err", err)
		os.Exit(1)
	}

	fmt.Printf("sessions removed: %d, rate limit rows pruned: %d\n", expired, pruned)
}
