// Command reset-password sets a user's password from the command line and
// ends their open session.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"agency-crm-api/internal/config"
	"agency-crm-api/internal/repository"
	"agency-crm-api/pkg/database"

	"github.com/google/uuid"
)

func main() {
	email := flag.String("email", "", "email of the account to reset")
	password := flag.String("password", "", "new password, at least 6 characters")
	flag.Parse()

	if *email == "" || len(*password) < 6 {
		log.Fatal("usage: reset-password -email <email> -password <new password (min 6 chars)>")
	}

	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// 2. Setup Database
	db, err := database.ConnectPostgres(database.PostgresOptions{
		DSN:             cfg.DSN(),
		MaxIdleConns:    1,
		MaxOpenConns:    1,
		ConnMaxLifetime: time.Minute,
	})
	if err != nil {
		log.Fatalf("database: %v", err)
	}

	// 3. Find user
	ctx := context.Background()
	users := repository.NewUserRepo(db)
	user, err := users.FindByEmail(ctx, *email)
	if err != nil {
		log.Fatalf("User %s not found: %v", *email, err)
	}

	// 4. Hash and save
	if err := user.SetPassword(*password); err != nil {
		log.Fatalf("Failed to hash password: %v", err)
	}
	user.TokenVersion = uuid.New().String()
	if err := users.Update(ctx, user); err != nil {
		log.Fatalf("Failed to update password: %v", err)
	}

	log.Printf("Password for %s has been reset (%s)", user.Email, user.Role)
}
