package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"standmap-service/internal/adapters/kv"
	"standmap-service/internal/adapters/repositories"
	"standmap-service/internal/config"
	"standmap-service/internal/domain"
	"standmap-service/internal/platform/db"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found (using environment variables)")
	}

	driver := config.Get("STORE_DRIVER", "postgres")
	dialect, err := repositories.ParseDialect(driver)
	if err != nil {
		log.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	conn, err := open(ctx, dialect)
	if err != nil {
		log.Fatal(err)
	}
	defer conn.Close()

	seedPath := config.Get("SEED_PATH", os.Getenv("STANDS_PATH"))
	if err := initAndSeed(ctx, conn, dialect, seedPath); err != nil {
		log.Fatal(err)
	}
}

func open(ctx context.Context, dialect repositories.Dialect) (*sql.DB, error) {
	if dialect == repositories.Sqlite {
		return db.OpenSqlite(ctx, config.Get("SQLITE_PATH", "data/app.db"))
	}
	databaseURL := os.Getenv("DATABASE_URL")
	if strings.TrimSpace(databaseURL) == "" {
		log.Fatal("DATABASE_URL is required")
	}
	return db.Open(ctx, databaseURL)
}

func initAndSeed(ctx context.Context, conn *sql.DB, dialect repositories.Dialect, seedPath string) error {
	log.Println("Initializing database schema...")
	if err := kv.InitSchema(ctx, conn); err != nil {
		log.Fatalf("schema initialization failed: %v", err)
	}
	if err := repositories.InitSchema(ctx, conn); err != nil {
		log.Fatalf("schema initialization failed: %v", err)
	}
	log.Println("Schema ready.")

	var stands []domain.Stand
	if seedPath == "" {
		log.Println("No SEED_PATH set, seeding default stands...")
		stands = repositories.DefaultStands()
	} else {
		log.Printf("Seeding stands from %s...", seedPath)
		var err error
		if stands, err = repositories.LoadStandsJSON(seedPath); err != nil {
			log.Fatalf("reading seed file failed: %v", err)
		}
	}

	if err := repositories.SeedStands(ctx, conn, dialect, stands); err != nil {
		log.Fatalf("seeding failed: %v", err)
	}
	log.Printf("Seeding complete (%d stands).", len(stands))

	return nil
}
