package cli

import (
	"context"
	"fmt"
	"log"
	"strconv"
)

// Views lists the views of a feed selected by list number. Views without an
// encrypted payload are shown by their record name.
func (a *App) Views(ctx context.Context, arg string) error {
	f, err := a.feedByArg(arg)
	if err != nil {
		fmt.Println(err.Error())
		return err
	}

	list, err := a.pipeline.FetchFeedViews(ctx, f.Feed.FeedID)
	if err != nil {
		log.Println(err.Error())
		return err
	}
	a.views = list.Views

	if len(a.views) == 0 {
		fmt.Println("This feed has no views; browse its raw items with 'data'.")
		return nil
	}

	for i, v := range a.views {
		active := " "
		if v.Active {
			active = "*"
		}
		fmt.Printf("%3d %s %-40s\n", i+1, active, v.Name)
	}
	return nil
}

// viewByArg resolves a 1-based view number from the last printed listing.
func (a *App) viewByArg(arg string) (string, error) {
	if len(a.views) == 0 {
		return "", fmt.Errorf("no view listing yet; run 'views <feed#>' first")
	}
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 || n > len(a.views) {
		return "", fmt.Errorf("expected a view number between 1 and %d", len(a.views))
	}
	return a.views[n-1].FeedViewID, nil
}
