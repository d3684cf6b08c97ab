package cli

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/dmitrijs2005/feedkeeper/internal/fetch"
)

// Data shows one page of a feed's raw items. This is the browsing path for
// feeds that have no views configured.
func (a *App) Data(ctx context.Context, feedArg, pageArg string) error {
	f, err := a.feedByArg(feedArg)
	if err != nil {
		fmt.Println(err.Error())
		return err
	}

	page := 1
	if pageArg != "" {
		if page, err = strconv.Atoi(pageArg); err != nil || page < 1 {
			fmt.Println("expected a positive page number")
			return fmt.Errorf("bad page argument %q", pageArg)
		}
	}

	q := fetch.PageQuery{Page: page, PageSize: a.config.PageSize}
	result, err := a.pipeline.FetchDataItems(ctx, f.Feed.FeedID, q)
	if err != nil {
		log.Println(err.Error())
		return err
	}

	if len(result.Items) == 0 {
		fmt.Println("No items.")
		return nil
	}

	for i, item := range result.Items {
		when := ""
		if item.Item.PubDate != 0 {
			when = time.UnixMilli(item.Item.PubDate).Format("2006-01-02 15:04")
		}
		files := ""
		if n := len(item.Item.Files); n > 0 {
			files = fmt.Sprintf(" [%d file(s)]", n)
		}
		fmt.Printf("%3d %-36s %s%s\n", i+1, item.Item.DataID, when, files)
	}
	fmt.Printf("page %d of %d (%d items total)\n", page, result.PageCount, result.EstimatedCount)
	return nil
}
