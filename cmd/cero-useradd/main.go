package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"cero/internal/auth"
	"cero/internal/db"
)

// CLI creates an account (unless --account-id is given) and a user in it.
type CLI struct {
	DBPath    string `kong:"name='db',default='cero.db',help='SQLite database path.',env='DB_PATH'"`
	Email     string `kong:"required,help='Email address for the new user.'"`
	Password  string `kong:"required,help='Password for the new user.'"`
	Role      string `kong:"default='member',enum='member,admin',help='User role.'"`
	Account   string `kong:"name='account-name',help='Name for a new account (default: the email).'"`
	AccountID int    `kong:"help='Add the user to an existing account instead of creating one.'"`
}

func main() {
	var cli CLI
	kong.Parse(&cli,
		kong.Name("cero-useradd"),
		kong.Description("Create an account and user."),
	)

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	d, err := db.Open(cli.DBPath)
	if err != nil {
		logger.Error("open database", "path", cli.DBPath, "err", err)
		os.Exit(1)
	}
	defer d.Close()

	svc := &auth.Service{DB: d, Logger: logger}

	accountID := int64(cli.AccountID)
	if accountID == 0 {
		name := cli.Account
		if name == "" {
			name = cli.Email
		}
		accountID, err = svc.CreateAccount(name)
		if err != nil {
			logger.Error("create account", "err", err)
			os.Exit(1)
		}
	}

	userID, err := svc.CreateUser(int(accountID), cli.Email, cli.Password, cli.Role)
	if err != nil {
		logger.Error("create user", "err", err)
		os.Exit(1)
	}

	fmt.Printf("account %d user %d (%s, %s)\n", accountID, userID, cli.Email, cli.Role)
}
