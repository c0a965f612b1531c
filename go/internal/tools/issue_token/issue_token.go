package main

import (
	"fmt"
	"os"

	"github.com/mcdev12/pairtalk/go/internal/config"
	"github.com/mcdev12/pairtalk/go/internal/identity"
)

// issue_token prints a signed connection token for each identity given on
// the command line, for local testing against /ws?token=...
func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "usage: issue_token <identity>...\n")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	resolver := identity.NewResolver(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	for _, id := range os.Args[1:] {
		token, err := resolver.Issue(id)
		if err != nil {
			fmt.Fprintf(os.Stderr, "issue %s: %v\n", id, err)
			os.Exit(1)
		}
		fmt.Printf("%s\t%s\n", id, token)
	}
}
