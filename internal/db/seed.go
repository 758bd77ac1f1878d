package db

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"gorm.io/gorm"
)

var seedInterestPool = []string{
	"music", "art", "sports", "movies", "books", "travel", "games", "cooking",
}

// SeedTestData resets the database and populates it with demo users.
//
// Behavior:
//  1. Clears existing data in `users`, `reports`, and `reactions` tables.
//  2. Creates 20 users (10 male, 10 female) with phones and interest tags.
//  3. Marks roughly a third of them as searching and links one demo dialog.
//
// Compatible with both MySQL and SQLite.
func SeedTestData(database *gorm.DB) error {
	r := rand.New(rand.NewSource(time.Now().UnixNano()))

	for _, table := range []string{"reactions", "reports", "users"} {
		if err := database.Exec("DELETE FROM " + table).Error; err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	log.Println("Cleared existing data")

	for i := 1; i <= 20; i++ {
		gender := "male"
		if i > 10 {
			gender = "female"
		}

		// two or three tags from the pool
		tags := ""
		for j, k := range r.Perm(len(seedInterestPool))[:2+r.Intn(2)] {
			if j > 0 {
				tags += ", "
			}
			tags += seedInterestPool[k]
		}

		user := User{
			ID:           int64(1000 + i),
			Handle:       fmt.Sprintf("user%d", i),
			Phone:        fmt.Sprintf("+4479%07d", i),
			Gender:       gender,
			Interests:    tags,
			InSearch:     i%3 == 0,
			RegisteredAt: time.Now().Add(-time.Duration(r.Intn(500)) * time.Hour),
		}
		if err := database.Create(&user).Error; err != nil {
			return fmt.Errorf("failed to seed user: %w", err)
		}
	}
	log.Println("Seeded 20 users.")

	// one active demo dialog between 1001 and 1011
	a, b := int64(1001), int64(1011)
	if err := database.Model(&User{}).Where("id = ?", a).
		Updates(map[string]interface{}{"partner_id": b, "in_search": false}).Error; err != nil {
		return err
	}
	if err := database.Model(&User{}).Where("id = ?", b).
		Updates(map[string]interface{}{"partner_id": a, "in_search": false}).Error; err != nil {
		return err
	}

	return nil
}
