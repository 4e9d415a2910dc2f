package db

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var seedTiers = []string{TierBronze, TierSilver, TierGold, TierPlatinum}

var seedTagPool = map[string][]string{
	"industry": {"fintech", "healthtech", "gaming", "ecommerce", "edtech"},
	"tech":     {"go", "react", "python", "kubernetes", "postgres", "terraform"},
	"goal":     {"career_change", "promotion", "first_job", "leadership"},
}

// SeedTestData resets the database and populates it with demo users.
//
// Behavior:
//  1. Clears existing data in all tables.
//  2. Creates 1 coordinator, 10 mentors and 10 mentees with hashed passwords,
//     random tiers (some mentees deliberately left unranked) and 2-5 tags each.
//  3. Leaves the match cache empty; run the recalc job to warm it.
//
// Compatible with both MySQL and SQLite.
func SeedTestData(db *gorm.DB) error {
	r := rand.New(rand.NewSource(time.Now().UnixNano()))

	// --- Fresh start ---
	for _, table := range []string{"override_requests", "match_cache_entries", "user_tags", "users"} {
		if err := db.Exec("DELETE FROM " + table).Error; err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	switch db.Dialector.Name() {
	case "mysql":
		db.Exec("ALTER TABLE users AUTO_INCREMENT = 1")
	case "sqlite":
		db.Exec("DELETE FROM sqlite_sequence WHERE name = 'users'")
	}

	log.Println("Cleared existing data")

	hash, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	coordinator := User{
		Username:     "coordinator1",
		Email:        "coordinator1@example.com",
		PasswordHash: string(hash),
		Role:         RoleCoordinator,
		Tier:         TierPlatinum,
		Active:       true,
	}
	if err := db.Create(&coordinator).Error; err != nil {
		return fmt.Errorf("failed to seed coordinator: %w", err)
	}

	// --- Seed mentors and mentees ---
	for i := 1; i <= 20; i++ {
		role := RoleMentor
		if i > 10 {
			role = RoleMentee
		}

		// mentors skew toward higher tiers, a few mentees stay unranked
		tier := seedTiers[r.Intn(len(seedTiers))]
		if role == RoleMentor && tier == TierBronze {
			tier = TierSilver
		}
		if role == RoleMentee && r.Intn(5) == 0 {
			tier = ""
		}

		user := User{
			Username:     fmt.Sprintf("user%d", i),
			Email:        fmt.Sprintf("user%d@example.com", i),
			PasswordHash: string(hash),
			Role:         role,
			Tier:         tier,
			Active:       true,
		}
		if err := db.Create(&user).Error; err != nil {
			return fmt.Errorf("failed to seed user: %w", err)
		}

		if err := seedTags(db, r, user.ID); err != nil {
			return err
		}
	}
	log.Println("Seeded 1 coordinator, 10 mentors, 10 mentees.")

	return nil
}

func seedTags(db *gorm.DB, r *rand.Rand, userID uint64) error {
	n := 2 + r.Intn(4) // 2-5 tags
	seen := map[string]bool{}
	for len(seen) < n {
		var category string
		switch r.Intn(3) {
		case 0:
			category = "industry"
		case 1:
			category = "tech"
		default:
			category = "goal"
		}
		value := seedTagPool[category][r.Intn(len(seedTagPool[category]))]
		key := category + ":" + value
		if seen[key] {
			continue
		}
		seen[key] = true

		tag := UserTag{UserID: userID, Category: category, Value: value}
		if err := db.Create(&tag).Error; err != nil {
			return fmt.Errorf("failed to seed tag: %w", err)
		}
	}
	return nil
}
