package seeders

import (
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fableink/fable_api/model"
	"github.com/fableink/fable_api/shared"
)

// PostSeeder handles seeding demo posts
type PostSeeder struct {
	db *gorm.DB
}

// NewPostSeeder creates a new post seeder
func NewPostSeeder(db *gorm.DB) *PostSeeder {
	return &PostSeeder{db: db}
}

type seedPost struct {
	Title   string
	Slug    string
	Content string
	Tags    string
}

var seedPosts = []seedPost{
	{
		Title:   "Welcome to FableInk",
		Slug:    "welcome-to-fableink",
		Content: "FableInk is a place for writers to publish stories, essays and everything in between. This post walks you through creating your first post, adding tags and uploading a cover image.",
		Tags:    "announcement,getting-started",
	},
	{
		Title:   "Writing Your First Post",
		Slug:    "writing-your-first-post",
		Content: "Hit the compose button, give your piece a title and start typing. Posts support tags for discovery, and you can keep a draft unpublished until it is ready.",
		Tags:    "getting-started,writing",
	},
	{
		Title:   "How View Counts Work",
		Slug:    "how-view-counts-work",
		Content: "View counts only move when a real reader opens a post. Repeated refreshes, author self-views and automated traffic are filtered out, so the number under your title reflects actual readership.",
		Tags:    "faq",
	},
}

// SeedPosts creates demo posts authored by the admin user
func (s *PostSeeder) SeedPosts() error {
	var count int64
	if err := s.db.Model(&model.Post{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		log.Println("Posts already exist, skipping post seeding")
		return nil
	}

	var admin model.User
	if err := s.db.Where("role = ?", shared.RoleAdmin).First(&admin).Error; err != nil {
		log.Println("No admin user found, skipping post seeding")
		return nil
	}

	for _, sp := range seedPosts {
		post := model.Post{
			ID:        uuid.Must(uuid.NewV7()).String(),
			AuthorID:  admin.ID,
			Title:     sp.Title,
			Slug:      sp.Slug,
			Content:   sp.Content,
			Tags:      sp.Tags,
			Published: true,
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		}

		if err := s.db.Create(&post).Error; err != nil {
			log.Printf("Error creating seed post %q: %v", sp.Title, err)
			return err
		}
	}

	log.Printf("Created %d seed posts", len(seedPosts))
	return nil
}
