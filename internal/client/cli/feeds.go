package cli

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/dmitrijs2005/feedkeeper/internal/models"
)

// List fetches the feed listing, refreshes the local cache and prints it.
func (a *App) List(ctx context.Context) error {
	list, err := a.feedService.Refresh(ctx)
	if err != nil {
		log.Println(err.Error())
		return err
	}
	a.feeds = list.Feeds

	if len(a.feeds) == 0 {
		fmt.Println("No feeds configured.")
		return nil
	}

	for i, f := range a.feeds {
		name := "(unnamed)"
		if f.Info != nil && f.Info.Name != "" {
			name = f.Info.Name
		}
		active := " "
		if f.Feed.Active {
			active = "*"
		}
		fmt.Printf("%3d %s %-40s %s\n", i+1, active, name, f.Feed.FeedType)
	}
	return nil
}

// ListCached prints the raw records held in the local cache. Useful when the
// bus is unreachable; names stay encrypted without the keys.
func (a *App) ListCached(ctx context.Context) error {
	records, err := a.feedService.ListCached(ctx)
	if err != nil {
		log.Println(err.Error())
		return err
	}

	if len(records) == 0 {
		fmt.Println("Cache is empty.")
		return nil
	}
	for _, f := range records {
		fmt.Printf("    %-36s %-24s active=%v\n", f.FeedID, f.FeedType, f.Active)
	}
	return nil
}

// AddFeed prompts for the new feed's settings and submits it.
func (a *App) AddFeed(ctx context.Context) error {
	feedType, err := getSimpleText(a.reader, "Enter feed type (e.g. rss, web.scraper)", os.Stdout)
	if err != nil {
		return err
	}
	name, err := getSimpleText(a.reader, "Enter feed name", os.Stdout)
	if err != nil {
		return err
	}
	url, err := getSimpleText(a.reader, "Enter feed URL", os.Stdout)
	if err != nil {
		return err
	}
	customCode, err := GetMultiline(a.reader, "Enter custom scraping code (optional)", os.Stdout)
	if err != nil {
		return err
	}

	info := models.FeedInformation{Name: name, URL: url, CustomCode: customCode}
	if err := a.feedService.AddFeed(ctx, feedType, info); err != nil {
		log.Println(err.Error())
		return err
	}

	fmt.Println("Feed submitted.")
	return nil
}

// EditFeed re-encrypts edited metadata for a feed selected by list number.
func (a *App) EditFeed(ctx context.Context, arg string) error {
	f, err := a.feedByArg(arg)
	if err != nil {
		fmt.Println(err.Error())
		return err
	}

	current := ""
	if f.Info != nil {
		current = f.Info.Name
	}
	name, err := getSimpleText(a.reader, fmt.Sprintf("Enter new name [%s]", current), os.Stdout)
	if err != nil {
		return err
	}
	url, err := getSimpleText(a.reader, "Enter new URL (empty to keep)", os.Stdout)
	if err != nil {
		return err
	}

	info := models.FeedInformation{}
	if f.Info != nil {
		info = *f.Info
	}
	if name != "" {
		info.Name = name
	}
	if url != "" {
		info.URL = url
	}

	if err := a.feedService.UpdateFeed(ctx, f, info); err != nil {
		log.Println(err.Error())
		return err
	}
	f.Info = &info

	fmt.Println("Feed updated.")
	return nil
}

// DeleteFeed removes a feed selected by list number.
func (a *App) DeleteFeed(ctx context.Context, arg string) error {
	f, err := a.feedByArg(arg)
	if err != nil {
		fmt.Println(err.Error())
		return err
	}

	if err := a.feedService.DeleteFeed(ctx, f.Feed.FeedID); err != nil {
		log.Println(err.Error())
		return err
	}

	fmt.Println("Feed deleted.")
	return nil
}

// feedByArg resolves a 1-based list number from the last printed listing.
func (a *App) feedByArg(arg string) (*models.DecryptedFeed, error) {
	if len(a.feeds) == 0 {
		return nil, fmt.Errorf("no feed listing yet; run 'list' first")
	}
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 || n > len(a.feeds) {
		return nil, fmt.Errorf("expected a feed number between 1 and %d", len(a.feeds))
	}
	return &a.feeds[n-1], nil
}
