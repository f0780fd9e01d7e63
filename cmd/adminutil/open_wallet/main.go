package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"

	"github.com/sudo-init-do/greenvault/internal/config"
	"github.com/sudo-init-do/greenvault/internal/db"
	"github.com/sudo-init-do/greenvault/internal/ledger"
)

// open_wallet creates the zero-balance wallet row for an account.
// Usage:
//
//	go run ./cmd/adminutil/open_wallet -account ngo-42 -kind ngo
func main() {
	account := flag.String("account", "", "account id")
	kind := flag.String("kind", string(ledger.KindInvestor), "investor or ngo")
	configPath := flag.String("config", config.DefaultPath, "path to the YAML config file")
	flag.Parse()

	if *account == "" {
		log.Fatalf("usage: go run ./cmd/adminutil/open_wallet -account <id> -kind investor|ngo")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()
	if err := db.Init(ctx, cfg.DatabaseURL); err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	svc := ledger.NewService(ledger.Dependencies{Store: db.NewLedgerStore(db.Conn)})
	w, err := svc.OpenWallet(ctx, *account, ledger.AccountKind(*kind))
	switch {
	case errors.Is(err, ledger.ErrWalletExists):
		fmt.Printf("Wallet for %s already exists.\n", *account)
		return
	case err != nil:
		log.Fatalf("failed to open wallet: %v", err)
	}
	fmt.Printf("Opened %s wallet for %s.\n", w.Kind, w.AccountID)
}
