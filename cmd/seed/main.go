package main

import (
	"fmt"
	"log"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"

	"study-hub/auth"
	"study-hub/internal"
	"study-hub/repositories"
	"study-hub/services"
)

// Demo accounts registered into a fresh store so the server has identities
// to resolve display names against.
var demoUsers = []struct {
	providerID string
	email      string
	nickname   string
}{
	{"google-oauth2|1001", "alice@example.com", "Alice"},
	{"google-oauth2|1002", "bob@example.com", "Bob"},
	{"github|2001", "chloe@example.com", "Chloe"},
}

const demoPassword = "Str0ng-Dem0-Pass!"

func main() {
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		log.Fatalf("Config error: %v", err)
	}
	logger := logs.GetLoggerFromString(config.LogLevel)

	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	directory := repositories.NewUserDirectory(db)
	tokens := auth.NewTokenIssuer(config.AuthSecret, config.AuthTokenDuration)
	accounts := services.NewAccountService(directory, tokens)

	color.Green.Println("Seeding demo accounts...")
	for _, u := range demoUsers {
		token, err := accounts.Register(u.providerID, u.email, u.nickname, demoPassword)
		if err != nil {
			logger.Warn("Skipping user", "provider_id", u.providerID, "err", err)
			continue
		}
		fmt.Printf("%s  %s\n  token: %s\n", color.Cyan.Sprint(u.nickname), u.providerID, token)
	}
	color.Green.Printf("Done at %s\n", time.Now().Format(time.RFC822))
}
