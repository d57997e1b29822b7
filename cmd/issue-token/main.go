package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"pigeon-auction/internal/auth"
	"pigeon-auction/internal/config"
	"pigeon-auction/internal/domain"
	"pigeon-auction/pkg/logger"
)

// issue-token signs a credential for local testing with the configured secret.
func main() {
	userID := flag.String("user", "", "user id (sub claim)")
	name := flag.String("name", "", "display name")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	configPath := flag.String("config", "", "config file (defaults to the usual search paths)")
	flag.Parse()

	log := logger.New()
	if *userID == "" {
		fmt.Fprintln(os.Stderr, "usage: issue-token -user <id> [-name <display name>] [-ttl 24h]")
		os.Exit(2)
	}

	var (
		cfg *config.Config
		err error
	)
	if *configPath != "" {
		cfg, err = config.LoadFromFile(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		log.Fatal("Failed to load config", "error", err)
	}
	if cfg.Auth.JWTSecret == "" {
		log.Fatal("auth.jwt_secret is not set")
	}

	resolver := auth.NewJWTResolver(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	token, err := resolver.Issue(domain.Identity{UserID: *userID, Name: *name}, *ttl)
	if err != nil {
		log.Fatal("Failed to sign token", "error", err)
	}
	fmt.Println(token)
}
