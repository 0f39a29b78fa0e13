package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"guildconfig/cmd"
	"guildconfig/config"
	"guildconfig/database"

	log "github.com/sirupsen/logrus"
)

const usage = `usage:
  guildconfig                                 run the settings store
  guildconfig migrate [up|down [steps]|status]
  guildconfig settings show <guildID>
  guildconfig settings set <guildID> <patch-json>`

func main() {
	if err := config.LoadEnvFiles(); err != nil {
		log.Fatal("Environment error: ", err)
	}

	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "migrate":
			if err := handleMigrationCommand(); err != nil {
				log.Fatal("Migration error: ", err)
			}
			return
		case "settings":
			if err := handleSettingsCommand(); err != nil {
				log.Fatal("Settings error: ", err)
			}
			return
		case "help", "-h", "--help":
			fmt.Println(usage)
			return
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("Received shutdown signal, shutting down gracefully...")
		cancel()
	}()

	if err := cmd.Run(ctx); err != nil {
		log.Fatal("Application error: ", err)
	}
}

func handleMigrationCommand() error {
	if len(os.Args) < 3 {
		return fmt.Errorf("%s", usage)
	}

	cfg := config.Get()
	cmd.ConfigureLogging(cfg)
	databaseURL := cfg.GetDatabaseURL()

	switch os.Args[2] {
	case "up":
		return database.MigrateUp(databaseURL)
	case "down":
		steps := 1
		if len(os.Args) > 3 {
			parsed, err := strconv.Atoi(os.Args[3])
			if err != nil {
				return fmt.Errorf("invalid steps value: %w", err)
			}
			steps = parsed
		}
		return database.MigrateDown(databaseURL, steps)
	case "status":
		status, err := database.MigrateStatus(databaseURL)
		if err != nil {
			return err
		}
		if !status.Applied {
			fmt.Println("No migrations have been applied yet")
			return nil
		}
		state := "clean"
		if status.Dirty {
			state = "dirty"
		}
		fmt.Printf("Current migration version: %d (status: %s)\n", status.Version, state)
		return nil
	default:
		return fmt.Errorf("unknown migration command: %s", os.Args[2])
	}
}

func handleSettingsCommand() error {
	if len(os.Args) < 4 {
		return fmt.Errorf("%s", usage)
	}

	cfg := config.Get()
	cmd.ConfigureLogging(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Only edits are broadcast to other processes
	app, err := cmd.NewApp(ctx, cfg, os.Args[2] == "set")
	if err != nil {
		return err
	}
	defer app.Close(ctx)

	guildID := os.Args[3]
	switch os.Args[2] {
	case "show":
		return cmd.ShowSettings(ctx, app.Settings, guildID, os.Stdout)
	case "set":
		if len(os.Args) < 5 {
			return fmt.Errorf("%s", usage)
		}
		return cmd.SetSettings(ctx, app.Settings, guildID, os.Args[4], os.Stdout)
	default:
		return fmt.Errorf("unknown settings command: %s", os.Args[2])
	}
}
