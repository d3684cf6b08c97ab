// Package cli provides the interactive feed viewer command-line client.
//
// It wires configuration, the local cache, the bus connection, and an
// interactive REPL. Typical flow: prompt for credentials, then navigate
// feeds, views and paginated item listings; attached files are fetched from
// the file host and decrypted locally.
//
// Key features:
//   - Login / Logout against the message bus
//   - List feeds (with local cache refresh) and browse their views
//   - Page through a view's items
//   - Add / edit / delete feeds, with the client-side encryption that entails
//   - Download and decrypt attached files
//
// The REPL is started via App.Root(ctx), which blocks until the user exits.
// See App and runREPL for details.
package cli
