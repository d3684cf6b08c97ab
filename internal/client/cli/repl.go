package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	List(ctx context.Context) error
	ListCached(ctx context.Context) error
	AddFeed(ctx context.Context) error
	EditFeed(ctx context.Context, arg string) error
	DeleteFeed(ctx context.Context, arg string) error
	Views(ctx context.Context, arg string) error
	Data(ctx context.Context, feedArg, pageArg string) error
	Items(ctx context.Context, viewArg, pageArg string) error
	NextPage(ctx context.Context) error
	PrevPage(ctx context.Context) error
	OpenFile(ctx context.Context, arg string) error
}

// runREPL starts a simple read-eval-print loop for the feed viewer.
//
// It reads a line from the provided scanner, parses the first token as the
// command, and dispatches to methods on 'a'. Unknown commands are reported
// back to the user. The loop exits on scanner EOF or when the user types
// "exit" or "quit".
//
// Prompt & Commands
//
// The prompt shows the current status (from statusFn) and accepts commands:
//
//	Not logged in:
//	  - help            — show available commands
//	  - login           — authenticate
//	  - cached          — list locally cached feed records
//	  - exit | quit     — leave the program
//
//	Logged in:
//	  - help            — show available commands
//	  - list            — fetch and list feeds
//	  - cached          — list locally cached feed records
//	  - add             — add a feed
//	  - edit <feed#>    — edit a feed's settings
//	  - delete <feed#>  — delete a feed
//	  - views <feed#>   — list a feed's views
//	  - data <feed#> [page] — show a page of a feed's raw items
//	  - items <view#> [page] — show a page of a view's items
//	  - next | prev     — move between pages
//	  - open <item#>    — download an item's attached file
//	  - logout          — log out
//	  - exit | quit     — leave the program
//
// Any errors returned by command handlers are ignored here; handlers should
// log their own errors. This keeps the REPL loop resilient and focused on I/O.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printlnFn(fmt.Sprintf("fk> %s > ", statusFn()))
		if !scanner.Scan() {
			return
		}
		line := scanner.Text()
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd := parts[0]
		args := parts[1:]

		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn("Available commands: list, cached, add, edit <feed#>, delete <feed#>, views <feed#>, data <feed#> [page], items <view#> [page], next, prev, open <item#>, logout, exit")
			} else {
				printlnFn("Available commands: login, cached, exit")
			}

		case "login":
			_ = a.Login(ctx)

		case "logout":
			_ = a.Logout(ctx)

		case "l", "list":
			_ = a.List(ctx)

		case "cached":
			_ = a.ListCached(ctx)

		case "add":
			_ = a.AddFeed(ctx)

		case "edit":
			if len(args) == 0 {
				printlnFn("Usage: edit <feed#>")
				continue
			}
			_ = a.EditFeed(ctx, args[0])

		case "delete":
			if len(args) == 0 {
				printlnFn("Usage: delete <feed#>")
				continue
			}
			_ = a.DeleteFeed(ctx, args[0])

		case "views":
			if len(args) == 0 {
				printlnFn("Usage: views <feed#>")
				continue
			}
			_ = a.Views(ctx, args[0])

		case "data":
			if len(args) == 0 {
				printlnFn("Usage: data <feed#> [page]")
				continue
			}
			pageArg := ""
			if len(args) > 1 {
				pageArg = args[1]
			}
			_ = a.Data(ctx, args[0], pageArg)

		case "items":
			if len(args) == 0 {
				printlnFn("Usage: items <view#> [page]")
				continue
			}
			pageArg := ""
			if len(args) > 1 {
				pageArg = args[1]
			}
			_ = a.Items(ctx, args[0], pageArg)

		case "n", "next":
			_ = a.NextPage(ctx)

		case "p", "prev":
			_ = a.PrevPage(ctx)

		case "open":
			if len(args) == 0 {
				printlnFn("Usage: open <item#>")
				continue
			}
			_ = a.OpenFile(ctx, args[0])

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}
	}
}
