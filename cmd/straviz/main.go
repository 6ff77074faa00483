// Command straviz runs the Straviz web application.
package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/tguillot/straviz/internal/db"
	"github.com/tguillot/straviz/internal/strava"
	"github.com/tguillot/straviz/internal/web"
	webfs "github.com/tguillot/straviz/web"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	stravaCfg, err := strava.LoadConfig()
	if err != nil {
		return err
	}

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		return fmt.Errorf("please set the DATABASE_URL environment variable")
	}

	addr := os.Getenv("ADDR")
	if addr == "" {
		addr = web.DefaultAddr
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	database, err := db.New(ctx, databaseURL)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer database.Close()

	if err := database.Migrate(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	// Create sub-filesystems for templates and static files
	templates, err := fs.Sub(webfs.TemplatesFS, "templates")
	if err != nil {
		return fmt.Errorf("creating templates filesystem: %w", err)
	}

	static, err := fs.Sub(webfs.StaticFS, "static")
	if err != nil {
		return fmt.Errorf("creating static filesystem: %w", err)
	}

	server, err := web.NewServer(web.ServerConfig{
		Addr:        addr,
		Strava:      stravaCfg,
		Database:    database,
		TemplatesFS: templates,
		StaticFS:    static,
	})
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	return server.Run()
}
