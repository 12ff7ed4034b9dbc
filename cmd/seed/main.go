// seed inserts development sample data for local testing: a super admin, an
// approved driver, and a rider.
// Idempotent: skips inserts when the admin (admin@resqride.dev) already exists.
package main

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"resqride/backend/internal/config"
	"resqride/backend/internal/db"
	"resqride/backend/internal/security"
	userdomain "resqride/backend/internal/user/domain"
	userrepo "resqride/backend/internal/user/repository"
)

const (
	adminEmail  = "admin@resqride.dev"
	driverEmail = "driver@resqride.dev"
	riderEmail  = "rider@resqride.dev"
	devPassword = "SecurePassword123"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	pool, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	ctx := context.Background()
	users := userrepo.NewPostgresRepository(pool)

	existing, err := users.GetByEmailAndRole(ctx, adminEmail, userdomain.RoleAdmin)
	if err != nil {
		log.Fatalf("seed: admin lookup: %v", err)
	}
	if existing != nil {
		log.Println("seed: dev data already present, nothing to do")
		return
	}

	hasher := security.NewHasher(cfg.BcryptCost)
	hash, err := hasher.Hash([]byte(devPassword))
	if err != nil {
		log.Fatalf("seed: hash: %v", err)
	}
	now := time.Now().UTC()

	seedUsers := []*userdomain.User{
		{
			ID:            uuid.NewString(),
			FirstName:     "Avery",
			LastName:      "Admin",
			Email:         adminEmail,
			EmailVerified: true,
			Role:          userdomain.RoleAdmin,
			PasswordHash:  hash,
			SuperAdmin:    true,
			CreatedAt:     now,
			UpdatedAt:     now,
		},
		{
			ID:             uuid.NewString(),
			FirstName:      "Devon",
			LastName:       "Driver",
			Email:          driverEmail,
			EmailVerified:  true,
			Role:           userdomain.RoleDriver,
			PasswordHash:   hash,
			Phone:          "5550100",
			CountryCode:    "+1",
			ApprovalStatus: userdomain.ApprovalApproved,
			Rating:         5,
			CreatedAt:      now,
			UpdatedAt:      now,
		},
		{
			ID:              uuid.NewString(),
			FirstName:       "Riley",
			LastName:        "Rider",
			Email:           riderEmail,
			EmailVerified:   true,
			Role:            userdomain.RoleUser,
			ProviderSubject: "seed-rider-subject",
			LoyaltyPoints:   100,
			CreatedAt:       now,
			UpdatedAt:       now,
		},
	}
	for _, u := range seedUsers {
		if err := users.Create(ctx, u); err != nil {
			log.Fatalf("seed: create %s: %v", u.Email, err)
		}
		log.Printf("seed: created %s (%s)", u.Email, u.Role)
	}
	log.Printf("seed: done; password for seeded accounts is %q", devPassword)
}
