package main

import (
	"log"
	"os"

	"giveflow/internal/config"
	"giveflow/internal/models"
	"giveflow/internal/repositories"
)

// Seeds one receiving organization so a fresh environment can take donations
// end to end. Idempotent on the organization name.
func main() {
	config.LoadEnv()

	name := os.Getenv("ORG_NAME")
	bankAccount := os.Getenv("ORG_BANK_ACCOUNT")
	bankCode := os.Getenv("ORG_BANK_CODE")
	momoNumber := os.Getenv("ORG_MOBILE_MONEY_NUMBER")

	if name == "" {
		log.Fatal("ORG_NAME must be set in environment")
	}
	if bankAccount == "" && momoNumber == "" {
		log.Fatal("ORG_BANK_ACCOUNT or ORG_MOBILE_MONEY_NUMBER must be set; the organization needs a payout destination")
	}

	if err := repositories.InitDB(); err != nil {
		log.Fatal("Failed to initialize database:", err)
	}
	defer func() {
		if repositories.DB != nil {
			sqlDB, err := repositories.DB.DB()
			if err != nil {
				log.Printf("Failed to get SQL DB instance: %v", err)
			} else if err := sqlDB.Close(); err != nil {
				log.Printf("Failed to close PostgreSQL connection: %v", err)
			}
		}
		if repositories.CacheService != nil {
			if err := repositories.CacheService.Close(); err != nil {
				log.Printf("Failed to close Redis connection: %v", err)
			}
		}
	}()

	var existing models.Organization
	if result := repositories.DB.Where("name = ?", name).First(&existing); result.Error == nil {
		log.Printf("Organization %q already exists (id=%d)", name, existing.ID)
		return
	}

	org := models.Organization{
		Name:              name,
		BankAccountNumber: bankAccount,
		BankCode:          bankCode,
		MobileMoneyNumber: momoNumber,
		FeeTier:           models.FeeTierStandard,
		Active:            true,
	}
	if err := repositories.DB.Create(&org).Error; err != nil {
		log.Fatal("Failed to create organization:", err)
	}

	log.Printf("Organization %q created (id=%d)", name, org.ID)
}
