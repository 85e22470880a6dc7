package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ignite/engagement-agent/internal/app"
	"github.com/ignite/engagement-agent/internal/config"
)

func main() {
	listOnly := flag.Bool("list", false, "list engagement tables and exit")
	flag.Parse()

	dir := "migrations"
	if flag.NArg() > 0 {
		dir = flag.Arg(0)
	}

	cfg, err := config.LoadFromEnv("")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	db, err := app.OpenDB(context.Background(), cfg.Database)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer db.Close()
	log.Println("Connected to database")

	if *listOnly {
		if err := listTables(db, os.Stdout); err != nil {
			log.Fatal(err)
		}
		return
	}

	files, err := migrationFiles(dir)
	if err != nil {
		log.Fatalf("read migrations dir %s: %v", dir, err)
	}
	okCount, errCount := apply(db, dir, files, os.Stdout)
	log.Printf("Done: %d OK, %d errors", okCount, errCount)
	if errCount > 0 {
		os.Exit(1)
	}
	log.Println("Migrations complete")
}

// migrationFiles returns the .sql files in dir, sorted by name.
func migrationFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

// apply runs each file in its own transaction. A failing file is rolled back
// and the rest still run.
func apply(db *sql.DB, dir string, files []string, out io.Writer) (okCount, errCount int) {
	for _, f := range files {
		data, err := os.ReadFile(filepath.Join(dir, f))
		if err != nil {
			fmt.Fprintf(out, "  %s ... READ ERROR: %v\n", f, err)
			errCount++
			continue
		}
		if strings.TrimSpace(string(data)) == "" {
			continue
		}
		fmt.Fprintf(out, "  %s ... ", f)

		tx, err := db.Begin()
		if err != nil {
			fmt.Fprintf(out, "BEGIN ERROR: %v\n", err)
			errCount++
			continue
		}
		if _, err := tx.Exec(string(data)); err != nil {
			tx.Rollback()
			fmt.Fprintf(out, "ERROR: %v\n", err)
			errCount++
			continue
		}
		if err := tx.Commit(); err != nil {
			fmt.Fprintf(out, "COMMIT ERROR: %v\n", err)
			errCount++
			continue
		}
		fmt.Fprintln(out, "OK")
		okCount++
	}
	return okCount, errCount
}

func listTables(db *sql.DB, out io.Writer) error {
	rows, err := db.Query(`SELECT t.tablename, COALESCE(s.n_live_tup, 0)
		FROM pg_tables t
		LEFT JOIN pg_stat_user_tables s ON s.relname = t.tablename
		WHERE t.schemaname = 'public' AND t.tablename IN ('users', 'message_logs')
		ORDER BY t.tablename`)
	if err != nil {
		return err
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		var name string
		var live int64
		if err := rows.Scan(&name, &live); err != nil {
			return err
		}
		fmt.Fprintf(out, "  %-14s ~%d rows\n", name, live)
		n++
	}
	fmt.Fprintf(out, "Total: %d tables\n", n)
	return rows.Err()
}
