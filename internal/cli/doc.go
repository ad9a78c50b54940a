// Package cli implements the ledgerctl admin commands: schema migrations and
// their history, sync queue inspection, and record access by collection.
package cli
