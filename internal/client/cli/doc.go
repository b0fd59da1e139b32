// Package cli provides the interactive DreamKeeper command-line client.
//
// It wires configuration, local storage, the HTTP gateway, quota enforcement
// and an interactive REPL that works fully offline and syncs opportunistically.
// Typical flow: load the local journal, optionally paste a session token, and
// execute user commands.
//
// Key features:
//   - Login / Logout (bearer token, guest records migrate on first login)
//   - Add / List / Show / Delete dream records
//   - Analyze and Explore dreams, gated by per-tier quotas
//   - Sync with the backend; Status shows quota usage
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
// See App and runREPL for details.
package cli
