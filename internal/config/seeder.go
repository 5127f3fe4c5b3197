package config

import (
	"log"

	"fuelink/internal/adapters/persistence/models"
	"fuelink/internal/pkg/password"

	"gorm.io/gorm"
)

// Seeder handles database seeding
type Seeder struct {
	db *gorm.DB
}

// NewSeeder creates a new seeder instance
func NewSeeder(db *gorm.DB) *Seeder {
	return &Seeder{db: db}
}

// Run executes all seeders
func (s *Seeder) Run() error {
	log.Println("🌱 Running database seeders...")

	if err := s.seedAdminUser(); err != nil {
		log.Printf("⚠️ Admin seeder skipped: %v", err)
	}
	if err := s.seedDemoParties(); err != nil {
		log.Printf("⚠️ Demo party seeder skipped: %v", err)
	}

	log.Println("✅ Database seeding completed")
	return nil
}

// seedAdminUser seeds default admin user
// This is for development/testing only
// In production, create admin through secure process
func (s *Seeder) seedAdminUser() error {
	// Check if admin already exists
	var count int64
	s.db.Model(&models.User{}).Where("role = ?", "ADMIN").Count(&count)
	if count > 0 {
		return nil // Admin already exists
	}

	hashedPassword, err := password.Hash("admin123456")
	if err != nil {
		return err
	}

	admin := &models.User{
		Username: "admin",
		Email:    "admin@fuelink.io",
		Password: hashedPassword,
		Role:     "ADMIN",
		IsActive: true,
	}

	if err := s.db.Create(admin).Error; err != nil {
		return err
	}

	log.Println("✅ Default admin user created (username: admin)")
	return nil
}

// seedDemoParties seeds one of each party plus credit lines so the dev
// environment can run the full voucher flow out of the box
func (s *Seeder) seedDemoParties() error {
	if !AppConfig.IsDev() {
		return nil // Demo data is for development only
	}

	var count int64
	s.db.Model(&models.Bank{}).Count(&count)
	if count > 0 {
		return nil // Already seeded
	}

	bank := &models.Bank{Name: "Fuelink Demo Bank", AccountNumber: "100-000-0001", IsActive: true}
	if err := s.db.Create(bank).Error; err != nil {
		return err
	}

	agency := &models.Agency{
		Name:                 "Demo Transit Co",
		FleetSize:            12,
		AverageRepaymentDays: 21,
		MonthlyFuelVolume:    36000,
	}
	if err := s.db.Create(agency).Error; err != nil {
		return err
	}

	driver := &models.Driver{
		FullName:              "Demo Driver",
		PhoneNumber:           "0800000001",
		AgencyID:              &agency.ID,
		PreferredBankID:       &bank.ID,
		FuelTankCapacityL:     80,
		FuelConsumptionLPerKm: 0.12,
	}
	if err := s.db.Create(driver).Error; err != nil {
		return err
	}

	station := &models.FuelStation{
		Name:            "Demo Fuel Station",
		MerchantAccount: "200-000-0001",
		IsActive:        true,
	}
	if err := s.db.Create(station).Error; err != nil {
		return err
	}

	agencyLine := &models.CreditLine{
		OwnerType:   models.LineOwnerAgency,
		AgencyID:    &agency.ID,
		BankID:      bank.ID,
		CreditLimit: 120000,
		IsActive:    true,
	}
	if err := s.db.Create(agencyLine).Error; err != nil {
		return err
	}

	driverLine := &models.CreditLine{
		OwnerType:    models.LineOwnerDriver,
		DriverID:     &driver.ID,
		AgencyID:     &agency.ID,
		BankID:       bank.ID,
		ParentLineID: &agencyLine.ID,
		CreditLimit:  10000,
		IsActive:     true,
	}
	if err := s.db.Create(driverLine).Error; err != nil {
		return err
	}

	log.Println("✅ Demo bank, agency, driver, station and credit lines created")
	return nil
}
