package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Reads a fractald SQLite snapshot and prints what a restore would load.
func main() {
	dbPath := flag.String("db", "deploy/dogfood/fractald.db", "fractald SQLite database")
	flag.Parse()

	db, err := sql.Open("sqlite3", *dbPath)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	var takenAt int64
	var nodes, contributions int
	err = db.QueryRow("SELECT taken_at, node_count, contribution_count FROM snapshot_meta WHERE id = 1").
		Scan(&takenAt, &nodes, &contributions)
	if err == sql.ErrNoRows {
		fmt.Println("No snapshot written yet")
		return
	}
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Snapshot taken at: %s\n", time.Unix(0, takenAt).UTC().Format(time.RFC3339))
	fmt.Printf("Nodes: %d, Contributions: %d\n", nodes, contributions)

	rows, err := db.Query("SELECT fractal_level, count(*) FROM nodes GROUP BY fractal_level ORDER BY fractal_level")
	if err != nil {
		log.Fatal(err)
	}
	defer rows.Close()
	for rows.Next() {
		var level, count int
		if err := rows.Scan(&level, &count); err != nil {
			log.Fatal(err)
		}
		fmt.Printf("  level %d: %d nodes\n", level, count)
	}
	if err := rows.Err(); err != nil {
		log.Fatal(err)
	}

	var holder string
	var expires int64
	err = db.QueryRow("SELECT holder_id, expires_at FROM leases WHERE name = 'snapshot-writer'").Scan(&holder, &expires)
	switch {
	case err == sql.ErrNoRows:
		fmt.Println("Snapshot lease: free")
	case err != nil:
		log.Fatal(err)
	default:
		fmt.Printf("Snapshot lease: %s until %s\n", holder, time.UnixMilli(expires).UTC().Format(time.RFC3339))
	}
}
