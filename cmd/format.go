package cmd

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/rubiojr/places/pkg/places"
	"github.com/rubiojr/places/pkg/tags"
)

// Define styles using lipgloss
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86"))

	urlStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("33")).
			Underline(true)

	metaStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	snippetStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")).
			Italic(true)

	tagStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	noDataStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)
)

func renderPlaces(results []*places.Place) {
	if len(results) == 0 {
		fmt.Println(noDataStyle.Render("No results found"))
		return
	}

	for i, p := range results {
		title := p.Title
		if title == "" || title == p.URL {
			title = p.URL
		}
		fmt.Printf("%d. %s\n", i+1, titleStyle.Render(title))
		fmt.Printf("   %s\n", urlStyle.Render(p.URL))

		meta := fmt.Sprintf("visits: %d, last: %s, score: %.0f",
			p.VisitCount,
			time.UnixMilli(p.LastVisit).Format("2006-01-02"),
			p.Score)
		if p.IsBookmarked {
			meta += ", bookmarked"
		}
		fmt.Printf("   %s\n", metaStyle.Render(meta))

		if len(p.Tags) > 0 {
			fmt.Printf("   %s\n", tagStyle.Render(strings.Join(p.Tags, " ")))
		}
		if p.SearchSnippet != "" {
			fmt.Printf("   %s\n", snippetStyle.Render(p.SearchSnippet))
		}
		if i < len(results)-1 {
			fmt.Println()
		}
	}
}

func renderScoredTags(scored []tags.ScoredTag) {
	if len(scored) == 0 {
		fmt.Println(noDataStyle.Render("No tags"))
		return
	}
	for _, st := range scored {
		fmt.Printf("%s %s\n", tagStyle.Render(st.Tag), metaStyle.Render(fmt.Sprintf("%.3f", st.Score)))
	}
}

func formatStats(stats map[string]interface{}) {
	keys := make([]string, 0, len(stats))
	for k := range stats {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Println(titleStyle.Render("Statistics"))
	for _, k := range keys {
		fmt.Printf("  %s: %v\n", metaStyle.Render(k), stats[k])
	}
}
