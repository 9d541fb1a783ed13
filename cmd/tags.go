package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

// TagsCommand creates the tags command with its subcommands
func TagsCommand() *cli.Command {
	return &cli.Command{
		Name:  "tags",
		Usage: "Tag suggestions and autocomplete",
		Commands: []*cli.Command{
			{
				Name:      "suggest",
				Usage:     "Suggest tags for a stored place",
				ArgsUsage: "<url>",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "all",
						Usage: "Show every known tag with its score",
					},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					url := c.Args().First()
					if url == "" {
						return fmt.Errorf("url is required")
					}
					return suggestTags(c.String("config"), url, c.Bool("all"))
				},
			},
			{
				Name:      "autocomplete",
				Usage:     "Complete a partial tag selection",
				ArgsUsage: "<tag> [tag...]",
				Action: func(ctx context.Context, c *cli.Command) error {
					if c.Args().Len() == 0 {
						return fmt.Errorf("at least one tag is required")
					}
					return autocompleteTags(c.String("config"), c.Args().Slice())
				},
			},
			{
				Name:      "items",
				Usage:     "List bookmarked places matching a tag set",
				ArgsUsage: "<tag> [tag...]",
				Action: func(ctx context.Context, c *cli.Command) error {
					if c.Args().Len() == 0 {
						return fmt.Errorf("at least one tag is required")
					}
					return itemsForTags(c.String("config"), c.Args().Slice())
				},
			},
		},
	}
}

func suggestTags(configPath, url string, all bool) error {
	_, store, eng, err := loadEngine(configPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Printf("Warning: failed to close store: %v\n", err)
		}
	}()

	if eng.GetPlace(url) == nil {
		return fmt.Errorf("no place stored for %s", url)
	}

	if all {
		renderScoredTags(eng.AllTagsRanked(url))
		return nil
	}
	renderScoredTags(eng.SuggestedTags(url))
	return nil
}

func autocompleteTags(configPath string, tagList []string) error {
	_, store, eng, err := loadEngine(configPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Printf("Warning: failed to close store: %v\n", err)
		}
	}()

	renderScoredTags(eng.AutocompleteTags(tagList))
	return nil
}

func itemsForTags(configPath string, tagList []string) error {
	_, store, eng, err := loadEngine(configPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Printf("Warning: failed to close store: %v\n", err)
		}
	}()

	renderPlaces(eng.SuggestedItemsForTags(tagList))
	return nil
}
