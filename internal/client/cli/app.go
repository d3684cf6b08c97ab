package cli

import (
	"bufio"
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/feedkeeper/internal/client/client"
	"github.com/dmitrijs2005/feedkeeper/internal/client/config"
	"github.com/dmitrijs2005/feedkeeper/internal/client/services"
	"github.com/dmitrijs2005/feedkeeper/internal/fetch"
	"github.com/dmitrijs2005/feedkeeper/internal/filehost"
	"github.com/dmitrijs2005/feedkeeper/internal/keymaster"
	"github.com/dmitrijs2005/feedkeeper/internal/logging"
	"github.com/dmitrijs2005/feedkeeper/internal/models"
	"github.com/dmitrijs2005/feedkeeper/internal/transport"

	_ "modernc.org/sqlite"
)

type App struct {
	config      *config.Config
	conn        transport.Connection
	pipeline    *fetch.Pipeline
	feedService services.FeedService
	files       *filehost.Client
	itemsCoord  *fetch.Coordinator[*fetch.ViewItemsPage]
	log         logging.Logger

	userName string
	loggedIn bool
	reader   *bufio.Reader

	// navigation state from the most recent listings
	feeds     []models.DecryptedFeed
	views     []models.DecryptedFeedView
	viewID    string
	page      int
	pageCount int
	lastPage  *fetch.ViewItemsPage
}

func NewApp(c *config.Config, logger logging.Logger) (*App, error) {

	ctx := context.Background()

	repos, err := client.InitDatabase(ctx, c.CachePath)
	if err != nil {
		log.Printf("error initializing database: %s", err.Error())
		return nil, err
	}

	conn, err := transport.NewNatsConnection(c.NatsURL, c.RequestTimeout, logger)
	if err != nil {
		return nil, err
	}

	km, err := keymaster.New(c.MasterPublicKeyHex)
	if err != nil {
		return nil, err
	}

	pipeline := fetch.NewPipeline(conn, logger)
	fs := services.NewFeedService(pipeline, conn, km, repos.DB, logger)

	files := filehost.NewClient(filehost.Settings{
		Bucket:       c.FilehostBucket,
		Region:       c.S3Region,
		BaseEndpoint: c.S3BaseEndpoint,
		RootUser:     c.S3RootUser,
		RootPassword: c.S3RootPassword,
	}, conn.GetFilehostToken, logger)

	a := &App{
		config:      c,
		conn:        conn,
		pipeline:    pipeline,
		feedService: fs,
		files:       files,
		log:         logger,
		reader:      bufio.NewReader(os.Stdin),
	}

	a.itemsCoord, err = fetch.NewCoordinator(func(ctx context.Context, key fetch.Tuple) (*fetch.ViewItemsPage, error) {
		return pipeline.FetchFeedViewData(ctx, key.ID, key.Query)
	})
	if err != nil {
		return nil, err
	}

	return a, nil
}

func (a *App) Run(ctx context.Context) {
	defer a.conn.Close()
	a.Root(ctx)
}

func (a *App) isLoggedIn() bool {
	return a.loggedIn
}
