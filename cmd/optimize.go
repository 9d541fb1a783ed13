package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

// OptimizeCommand creates the optimize command
func OptimizeCommand() *cli.Command {
	return &cli.Command{
		Name:  "optimize",
		Usage: "Optimize and compact the database",
		Action: func(ctx context.Context, c *cli.Command) error {
			return optimizeDB(c.String("config"))
		},
	}
}

func optimizeDB(configPath string) error {
	_, store, err := openStore(configPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Printf("Warning: failed to close store: %v\n", err)
		}
	}()

	if err := store.Optimize(); err != nil {
		return fmt.Errorf("optimizing: %w", err)
	}
	if err := store.Vacuum(); err != nil {
		return fmt.Errorf("vacuuming: %w", err)
	}
	if err := store.WALCheckpoint(); err != nil {
		return fmt.Errorf("checkpointing: %w", err)
	}

	fmt.Println("Database optimized")
	return nil
}
