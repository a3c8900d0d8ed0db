package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/jpgfer/mws-restaurant-1/internal/domain"
)

var (
	passStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	accentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Bold(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
)

func renderPass(s string) string   { return passStyle.Render(s) }
func renderWarn(s string) string   { return warnStyle.Render(s) }
func renderAccent(s string) string { return accentStyle.Render(s) }
func renderMuted(s string) string  { return mutedStyle.Render(s) }

// printJSON writes v as indented JSON to stdout.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var weekdays = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(mutedStyle).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(headers...)
}

func printRestaurants(restaurants []domain.Restaurant) error {
	if jsonOutput {
		return printJSON(restaurants)
	}
	if len(restaurants) == 0 {
		fmt.Println(renderWarn("No restaurants found"))
		return nil
	}

	t := newTable("ID", "Name", "Neighborhood", "Cuisine", "Fav", "Sync")
	for _, r := range restaurants {
		t.Row(strconv.Itoa(r.ID), r.Name, r.Neighborhood, r.CuisineType, favoriteMark(r.IsFavorite.Bool()), syncLabel(r.SyncStatus))
	}
	fmt.Println(t)
	return nil
}

func printRestaurant(r *domain.Restaurant) error {
	if jsonOutput {
		return printJSON(r)
	}
	fmt.Printf("%s %s\n", renderAccent(r.Name), favoriteMark(r.IsFavorite.Bool()))
	fmt.Printf("   %s, %s\n", r.CuisineType, r.Neighborhood)
	if r.Address != "" {
		fmt.Printf("   %s\n", r.Address)
	}
	for _, day := range weekdays {
		if hours, ok := r.OperatingHours[day]; ok {
			fmt.Printf("   %-10s %s\n", day, hours)
		}
	}
	fmt.Printf("   %s\n", renderMuted("image: "+domain.ImageURLForRestaurant(*r)))
	fmt.Printf("   %s\n", renderMuted("sync: "+syncLabel(r.SyncStatus)))
	return nil
}

func printReviews(reviews []domain.Review) error {
	if jsonOutput {
		return printJSON(reviews)
	}
	if len(reviews) == 0 {
		fmt.Println(renderWarn("No reviews yet"))
		return nil
	}

	t := newTable("ID", "Name", "Rating", "Comments", "Sync")
	for _, r := range reviews {
		t.Row(strconv.Itoa(r.ID), r.Name, stars(r.Rating), truncate(r.Comments, 60), syncLabel(r.SyncStatus))
	}
	fmt.Println(t)
	return nil
}

func printReview(r *domain.Review) error {
	if jsonOutput {
		return printJSON(r)
	}
	fmt.Printf("%s Review %d by %s %s\n", renderPass("✓"), r.ID, r.Name, stars(r.Rating))
	fmt.Printf("   %s\n", renderMuted("sync: "+syncLabel(r.SyncStatus)))
	return nil
}

func printNames(names []string) error {
	if jsonOutput {
		return printJSON(names)
	}
	for _, n := range names {
		fmt.Println(n)
	}
	return nil
}

func favoriteMark(fav bool) string {
	if fav {
		return warnStyle.Render("★")
	}
	return renderMuted("☆")
}

func stars(rating int) string {
	rating = max(0, min(rating, 5))
	return strings.Repeat("★", rating) + renderMuted(strings.Repeat("☆", 5-rating))
}

func syncLabel(s domain.SyncStatus) string {
	switch s {
	case domain.SyncStatusSynchronized:
		return renderPass("synced")
	case domain.SyncStatusDirty:
		return renderWarn("pending")
	case domain.SyncStatusDetached:
		return renderWarn("local only")
	default:
		return renderMuted("-")
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
