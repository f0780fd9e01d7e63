package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/sudo-init-do/greenvault/internal/config"
	appmw "github.com/sudo-init-do/greenvault/internal/middleware"
)

// issue_token mints a signed token for an account, for local testing and ops.
// Usage:
//
//	go run ./cmd/adminutil/issue_token -account ngo-42 -role ngo -ttl 2h
func main() {
	account := flag.String("account", "", "account id placed in the user_id claim")
	role := flag.String("role", appmw.RoleInvestor, "investor, ngo or admin")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	configPath := flag.String("config", config.DefaultPath, "path to the YAML config file")
	flag.Parse()

	if *account == "" {
		log.Fatalf("usage: go run ./cmd/adminutil/issue_token -account <id> [-role investor|ngo|admin] [-ttl 1h]")
	}
	switch *role {
	case appmw.RoleInvestor, appmw.RoleNGO, appmw.RoleAdmin:
	default:
		log.Fatalf("unknown role %q", *role)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	token, err := appmw.IssueToken(cfg.JWTSecret, *account, *role, *ttl)
	if err != nil {
		log.Fatalf("failed to sign token: %v", err)
	}
	fmt.Println(token)
}
