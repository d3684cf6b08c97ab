package cli

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/dmitrijs2005/feedkeeper/internal/fetch"
	"github.com/dmitrijs2005/feedkeeper/internal/filex"
	"github.com/dmitrijs2005/feedkeeper/internal/keyring"
)

// Items shows one page of a view's items. The view is selected by its number
// in the last 'views' listing; an optional second argument picks the page.
func (a *App) Items(ctx context.Context, viewArg, pageArg string) error {
	viewID, err := a.viewByArg(viewArg)
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

	a.viewID = viewID
	return a.loadItemsPage(ctx, page)
}

// NextPage and PrevPage move within the current view's pages.
func (a *App) NextPage(ctx context.Context) error {
	if a.viewID == "" {
		fmt.Println("no item listing yet; run 'items <view#>' first")
		return nil
	}
	if a.pageCount > 0 && a.page >= a.pageCount {
		fmt.Println("already on the last page")
		return nil
	}
	return a.loadItemsPage(ctx, a.page+1)
}

func (a *App) PrevPage(ctx context.Context) error {
	if a.viewID == "" {
		fmt.Println("no item listing yet; run 'items <view#>' first")
		return nil
	}
	if a.page <= 1 {
		fmt.Println("already on the first page")
		return nil
	}
	return a.loadItemsPage(ctx, a.page-1)
}

func (a *App) loadItemsPage(ctx context.Context, page int) error {
	q := fetch.PageQuery{Page: page, PageSize: a.config.PageSize}
	result, err := a.itemsCoord.Load(ctx, fetch.PageTuple(a.viewID, q))
	if err != nil {
		log.Println(err.Error())
		return err
	}

	a.page = page
	a.pageCount = result.PageCount
	a.lastPage = result

	if len(result.Items) == 0 {
		fmt.Println("No items.")
		return nil
	}

	for i, item := range result.Items {
		label := "(no label)"
		if item.Data != nil && item.Data.Label != nil {
			label = *item.Data.Label
		}
		when := ""
		if item.Data != nil && item.Data.PubDate != nil {
			when = time.UnixMilli(*item.Data.PubDate).Format("2006-01-02 15:04")
		}
		files := ""
		if n := len(item.Item.Files); n > 0 {
			files = fmt.Sprintf(" [%d file(s)]", n)
		}
		fmt.Printf("%3d %-60s %s%s\n", i+1, label, when, files)
	}
	fmt.Printf("page %d of %d (%d items total)\n", a.page, a.pageCount, result.EstimatedCount)
	return nil
}

// OpenFile downloads and decrypts the first file attached to an item from the
// current page, saving it under downloads/ with its fuuid as the name.
func (a *App) OpenFile(ctx context.Context, arg string) error {
	if a.lastPage == nil {
		fmt.Println("no item listing yet; run 'items <view#>' first")
		return nil
	}
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 || n > len(a.lastPage.Items) {
		fmt.Printf("expected an item number between 1 and %d\n", len(a.lastPage.Items))
		return fmt.Errorf("bad item argument %q", arg)
	}

	item := a.lastPage.Items[n-1]
	if len(item.Item.Files) == 0 {
		fmt.Println("This item has no attached files.")
		return nil
	}

	ref := item.Item.Files[0]
	key := a.lastPage.Keys.FileKey(&ref)
	if key == nil {
		fmt.Println("No key available for this file.")
		return keyring.ErrNoKeysAvailable
	}

	content, err := a.files.OpenFile(ctx, ref.Fuuid, key, ref.Decryption)
	if err != nil {
		log.Println(err.Error())
		return err
	}

	path, err := filex.SaveTo("downloads", ref.Fuuid, content)
	if err != nil {
		log.Println(err.Error())
		return err
	}
	fmt.Printf("Saved %s (%d bytes)\n", path, len(content))
	return nil
}
