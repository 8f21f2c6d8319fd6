// Command seed fills the database with demo data.
package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"log"
	"os"

	"snapgram/internal/config"
	"snapgram/internal/database"
	"snapgram/internal/middleware"
	"snapgram/internal/seed"

	"github.com/joho/godotenv"
)

func main() {
	preset := flag.String("preset", "small", "Preset name (small, demo, large, or one from -presets)")
	presetsFile := flag.String("presets", "", "YAML file with additional presets")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	randSeed := flag.Int64("seed", 0, "Fixed random seed for reproducible data (0 = random)")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("Failed to read .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.IsProduction() {
		log.Fatal("Refusing to seed a production database")
	}
	middleware.ConfigureLogger(cfg.Env, os.Stdout)

	p, err := seed.LoadPreset(*presetsFile, *preset)
	if err != nil {
		log.Fatalf("Failed to load preset: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	ctx := context.Background()
	s := seed.NewSeeder(db, seed.Options{Seed: *randSeed})

	if *shouldClean {
		if err := s.ClearAll(ctx); err != nil {
			log.Fatalf("Cleanup failed: %v", err)
		}
	}

	sum, err := s.Run(ctx, p)
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	log.Printf("Seeded %d users, %d posts, %d follows, %d likes, %d comments",
		sum.Users, sum.Posts, sum.Follows, sum.Likes, sum.Comments)
	log.Printf("All seeded users have the password: %s", seed.DefaultPassword)
}
