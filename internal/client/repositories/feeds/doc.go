// Package feeds provides the client-side cache of feed records.
//
// Records are stored exactly as received from the server, with the sensitive
// metadata still inside its encrypted envelope, so the cache never holds
// cleartext at rest. A SQLite-backed implementation (SQLiteRepository)
// persists data using a dbx.DBTX (either *sql.DB or *sql.Tx); ReplaceAll
// swaps the whole snapshot inside one transaction after a successful listing
// fetch.
package feeds
