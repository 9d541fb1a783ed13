package cmd

import (
	"context"
	"fmt"

	"github.com/rubiojr/places/pkg/engine"
	"github.com/urfave/cli/v3"
)

// SearchCommand creates the search command
func SearchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Search indexed places",
		ArgsUsage: "<query>",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "full-text",
				Usage: "Search extracted page text instead of URLs and titles",
			},
			&cli.BoolFlag{
				Name:  "bookmarks",
				Usage: "Limit results to bookmarked places",
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of results",
				Value: 10,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			query := c.Args().First()
			if query == "" {
				return fmt.Errorf("query is required")
			}
			return searchPlaces(c.String("config"), query, c.Bool("full-text"), c.Bool("bookmarks"), c.Int("limit"))
		},
	}
}

func searchPlaces(configPath, query string, fullText, bookmarks bool, limit int) error {
	_, store, eng, err := loadEngine(configPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Printf("Warning: failed to close store: %v\n", err)
		}
	}()

	if fullText {
		results, err := eng.FullTextSearch(query)
		if err != nil {
			return fmt.Errorf("full-text search: %w", err)
		}
		if limit > 0 && len(results) > limit {
			results = results[:limit]
		}
		renderPlaces(results)
		return nil
	}

	results := eng.QuickSearch(query, engine.QuickSearchOptions{
		LimitToBookmarks: bookmarks,
		Limit:            limit,
	})
	renderPlaces(results)
	return nil
}
