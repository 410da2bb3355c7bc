package main

import (
	"flag"
	"log"
	"os"

	"github.com/pressly/goose/v3"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Утилита миграций для окружений, где шлюз не применяет их сам
// (например, CI или раздельные права на DDL).
// Использование: migrate -dir migrations [up|down|status]
func main() {
	dir := flag.String("dir", "migrations", "directory with migration files")
	flag.Parse()

	command := "up"
	var rest []string
	if args := flag.Args(); len(args) > 0 {
		command = args[0]
		rest = args[1:]
	}

	dsn := os.Getenv("GATEWAY_POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("GATEWAY_POSTGRES_DSN is required")
	}

	db, err := goose.OpenDBWithDriver("pgx", dsn)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	if err := goose.Run(command, db, *dir, rest...); err != nil {
		log.Fatalf("goose %s: %v", command, err)
	}
}
