// Package main issues API bearer tokens for operators and local testing.
// Usage: token -uid ops -roles stock.manager -perms forecast:recompute
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"stockforecast/internal/domain/auth"
	"stockforecast/pkg/config"
)

func main() {
	configFile := flag.String("config", "", "path to config file")
	uid := flag.String("uid", "", "user id (required)")
	email := flag.String("email", "", "user email")
	roles := flag.String("roles", "", "comma separated roles")
	perms := flag.String("perms", "", "comma separated permissions, e.g. transfer:read,forecast:recompute")
	admin := flag.Bool("admin", false, "grant admin")
	ttl := flag.Duration("ttl", 0, "token lifetime, defaults to jwt.access_ttl")
	flag.Parse()

	if *uid == "" {
		fmt.Fprintln(os.Stderr, "Error: -uid is required")
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: load config: %v\n", err)
		os.Exit(1)
	}
	if cfg.JWT.Secret == "" {
		fmt.Fprintln(os.Stderr, "Error: jwt.secret is required (STOCKFORECAST_JWT_SECRET)")
		os.Exit(1)
	}

	lifetime := cfg.JWT.AccessTTL
	if *ttl > 0 {
		lifetime = *ttl
	}

	svc := auth.NewJWTService(auth.JWTConfig{
		Secret:         cfg.JWT.Secret,
		Issuer:         cfg.JWT.Issuer,
		AccessTokenTTL: lifetime,
	})

	token, expiresAt, err := svc.GenerateAccessToken(auth.Identity{
		UserID:      *uid,
		Email:       *email,
		Roles:       splitList(*roles),
		Permissions: splitList(*perms),
		IsAdmin:     *admin,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "expires at %s\n", expiresAt.Format(time.RFC3339))
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
