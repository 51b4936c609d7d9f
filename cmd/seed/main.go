// seed inserts development sample accounts for local testing.
// Idempotent: existing customers are reset to their seeded status; existing consultants are skipped.
package main

import (
	"context"
	"errors"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"portal-auth/backend/internal/config"
	consultantdomain "portal-auth/backend/internal/consultant/domain"
	consultantrepo "portal-auth/backend/internal/consultant/repository"
	customerdomain "portal-auth/backend/internal/customer/domain"
	customerrepo "portal-auth/backend/internal/customer/repository"
	"portal-auth/backend/internal/db"
)

// Approved customers can log in immediately; the unverified one exercises the signup path.
var customers = []customerdomain.Customer{
	{Email: "customer@example.com", Name: "Dev Customer", CompanyName: "Acme Ltd", Country: "IN", Status: customerdomain.StatusApproved, EmailVerified: true},
	{Email: "pending@example.com", Name: "Pending Customer", CompanyName: "Acme Ltd", Status: customerdomain.StatusPending, EmailVerified: true},
	{Email: "new@example.com", Name: "New Customer", Status: customerdomain.StatusUnverified},
}

var consultants = []consultantdomain.Consultant{
	{ExternalID: "dev-consultant-oid", Mail: "consultant@corp.example", DisplayName: "Dev Consultant", Role: consultantdomain.RoleConsultant},
	{ExternalID: "dev-admin-oid", Mail: "admin@corp.example", DisplayName: "Dev Admin", Role: consultantdomain.RoleAdmin},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Println("DATABASE_URL is not set; set it in .env or the environment")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	conn, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	custRepo := customerrepo.NewPostgresRepository(conn)
	consRepo := consultantrepo.NewPostgresRepository(conn)
	now := time.Now().UTC()

	var created int
	for i := range customers {
		c := customers[i]
		c.ID = uuid.NewString()
		c.CreatedAt, c.UpdatedAt = now, now
		err := custRepo.Create(ctx, &c)
		switch {
		case errors.Is(err, customerrepo.ErrDuplicateEmail):
			// Reset status so repeated runs leave the same login states.
			if err := custRepo.UpdateFields(ctx, c.Email, customerdomain.Fields{Status: &c.Status, Name: &c.Name}); err != nil {
				log.Fatalf("reset customer %s: %v", c.Email, err)
			}
			log.Printf("customer %s exists, reset to %s", c.Email, c.Status)
		case err != nil:
			log.Fatalf("create customer %s: %v", c.Email, err)
		default:
			created++
		}
	}

	for i := range consultants {
		c := consultants[i]
		existing, err := consRepo.GetByMail(ctx, c.Mail)
		if err != nil {
			log.Fatalf("lookup consultant %s: %v", c.Mail, err)
		}
		if existing != nil {
			log.Printf("consultant %s exists, skipping", c.Mail)
			continue
		}
		c.ID = uuid.NewString()
		c.CreatedAt = now
		if err := consRepo.Create(ctx, &c); err != nil {
			log.Fatalf("create consultant %s: %v", c.Mail, err)
		}
		created++
	}

	log.Printf("Seed complete: %d accounts created.", created)
	log.Println("  Customer login: customer@example.com (OTP is delivered via NOTIFY_MODE)")
	log.Println("  Consultants: consultant@corp.example, admin@corp.example (SAML only)")
}
