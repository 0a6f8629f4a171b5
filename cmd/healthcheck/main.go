// Command healthcheck probes the worker's database from inside the container
// and exits 0 when it is reachable. Used as the Docker HEALTHCHECK target.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	_ "modernc.org/sqlite"
)

func main() {
	os.Exit(check())
}

func check() int {
	path := os.Getenv("DECODE_DB_PATH")
	if path == "" {
		path = "decode.db"
	}

	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?mode=ro", path))
	if err != nil {
		return 1
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var n int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM claims").Scan(&n); err != nil {
		return 1
	}

	return 0
}
