package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jwebster45206/inventory-engine/internal/config"
	"github.com/jwebster45206/inventory-engine/internal/logger"
	"github.com/jwebster45206/inventory-engine/pkg/placement"
	"github.com/jwebster45206/inventory-engine/pkg/shape"
)

// Usage: console [snapshot.json]
//
// The snapshot file is loaded at startup when it exists and is where the
// save key writes.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// The terminal belongs to the UI, so logs go to a file.
	logPath := getEnv("CONSOLE_LOG_FILE", "console.log")
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logFile.Close()
	}()
	log := logger.SetupWriter(cfg, logFile)

	shapes, err := shape.LoadDir(filepath.Join(cfg.DataDir, "shapes"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load shapes: %v\n", err)
		os.Exit(1)
	}
	if len(shapes) == 0 {
		fmt.Fprintf(os.Stderr, "No shapes found in %s\n", filepath.Join(cfg.DataDir, "shapes"))
		os.Exit(1)
	}

	snapshotPath := "inventory.json"
	if len(os.Args) > 1 {
		snapshotPath = os.Args[1]
	}

	events := &eventLog{}
	engine := placement.NewEngine(engineObserver(events, log))
	b := newBoard(cfg.DefaultGridWidth, cfg.DefaultGridHeight, shapes, engine)
	if err := b.Load(snapshotPath); err == nil {
		events.add("loaded %d items from %s", len(b.items), snapshotPath)
	} else if !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Failed to load snapshot: %v\n", err)
		os.Exit(1)
	}
	log.Info("Console started", "shapes", len(shapes), "snapshot", snapshotPath, "width", b.grid.Width(), "height", b.grid.Height())

	p := tea.NewProgram(NewConsoleUI(b, events, snapshotPath, log),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running program: %v\n", err)
		os.Exit(1)
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
