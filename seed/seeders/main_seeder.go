package seeders

import (
	"log"

	"gorm.io/gorm"
)

// MainSeeder coordinates all seeding operations
type MainSeeder struct {
	db *gorm.DB
}

// NewMainSeeder creates a new main seeder
func NewMainSeeder(db *gorm.DB) *MainSeeder {
	return &MainSeeder{db: db}
}

// SeedAll runs all seeders in the correct order
func (s *MainSeeder) SeedAll() error {
	log.Println("Starting database seeding...")

	// 1. Admin user first so seeded posts have an author fallback
	adminSeeder := NewAdminSeeder(s.db)
	if err := adminSeeder.SeedAdmin(); err != nil {
		log.Printf("Admin seeding failed: %v", err)
		return err
	}

	// 2. Demo posts
	postSeeder := NewPostSeeder(s.db)
	if err := postSeeder.SeedPosts(); err != nil {
		log.Printf("Post seeding failed: %v", err)
		return err
	}

	log.Println("Database seeding completed successfully!")
	return nil
}

// SeedAdminOnly seeds only the admin user
func (s *MainSeeder) SeedAdminOnly() error {
	adminSeeder := NewAdminSeeder(s.db)
	return adminSeeder.SeedAdmin()
}

// SeedPostsOnly seeds only demo posts
func (s *MainSeeder) SeedPostsOnly() error {
	postSeeder := NewPostSeeder(s.db)
	return postSeeder.SeedPosts()
}
