package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/dmitrijs2005/feedkeeper/internal/common"
	"github.com/dmitrijs2005/feedkeeper/internal/transport"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// Login prompts the user for credentials and authenticates against the bus.
// The password is securely wiped before returning.
func (a *App) Login(ctx context.Context) error {
	userName, err := getSimpleText(a.reader, "Enter username", os.Stdout)
	if err != nil {
		return err
	}

	password, err := getPassword(os.Stdout)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	if err := a.conn.Authenticate(ctx, userName, string(password)); err != nil {
		if errors.Is(err, transport.ErrUnavailable) {
			log.Printf("Server unavailable; cached feed records remain readable via 'cached'")
		} else {
			log.Printf("Login unsuccessful: %s", err.Error())
		}
		return err
	}

	a.userName = userName
	a.loggedIn = true
	fmt.Println("Success!")
	return nil
}

// Logout drops the session state. Cached records stay on disk; they hold
// ciphertext only.
func (a *App) Logout(ctx context.Context) error {
	a.userName = ""
	a.loggedIn = false
	a.feeds = nil
	a.views = nil
	a.lastPage = nil
	a.itemsCoord.Reset()
	return nil
}
