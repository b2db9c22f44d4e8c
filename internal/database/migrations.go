package database

import (
	"gorm.io/gorm"

	"github.com/charlesng35/rsvp/internal/models"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Event{},
		&models.RSVP{},
		&models.Post{},
		&models.Notification{},
		&models.AuditLog{},
		&models.CacheEntry{},
	)
}

// SeedData inserts the anonymous placeholder user that owns RSVPs made for
// guests without an account.
func SeedData(db *gorm.DB) error {
	anonymous := models.User{
		Email:    models.AnonymousEmail,
		Name:     models.AnonymousName,
		IsActive: true,
	}
	return db.Where(models.User{Email: anonymous.Email}).Attrs(anonymous).FirstOrCreate(&models.User{}).Error
}
