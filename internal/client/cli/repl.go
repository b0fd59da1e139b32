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
	Add(ctx context.Context) error
	List(ctx context.Context) error
	Show(ctx context.Context) error
	Analyze(ctx context.Context) error
	Explore(ctx context.Context) error
	Say(ctx context.Context) error
	Delete(ctx context.Context) error
	Status(ctx context.Context) error
	Sync(ctx context.Context) error
}

// runREPL starts a simple read–eval–print loop for the DreamKeeper CLI.
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
//	Always:
//	  - help           — show available commands
//	  - add            — record a new dream
//	  - (l)ist         — list dreams
//	  - show           — show a single dream (interactive ID prompt)
//	  - analyze        — run analysis on a dream (quota gated)
//	  - explore        — start an exploration conversation (quota gated)
//	  - say            — add a message to an exploration (quota gated)
//	  - delete         — delete a dream
//	  - status         — show quota status
//	  - exit | quit    — leave the program
//
//	Guest only:
//	  - login          — paste a session token
//
//	Logged in:
//	  - sync           — reload from the backend and flush pending changes
//	  - logout         — return to guest mode
//
// Any errors returned by command handlers are ignored here; handlers should
// log their own errors. This keeps the REPL loop resilient and focused on I/O.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printlnFn(fmt.Sprintf("dk> %s > ", statusFn()))
		if !scanner.Scan() {
			return
		}
		line := scanner.Text()
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd := parts[0]

		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn("Available commands: add, (l)ist, show, analyze, explore, say, delete, status, sync, logout, exit")
			} else {
				printlnFn("Available commands: add, (l)ist, show, analyze, explore, say, delete, status, login, exit")
			}

		case "login":
			_ = a.Login(ctx)

		case "logout":
			_ = a.Logout(ctx)

		case "add":
			_ = a.Add(ctx)

		case "l", "list":
			_ = a.List(ctx)

		case "show":
			_ = a.Show(ctx)

		case "analyze":
			_ = a.Analyze(ctx)

		case "explore":
			_ = a.Explore(ctx)

		case "say":
			_ = a.Say(ctx)

		case "delete":
			_ = a.Delete(ctx)

		case "status":
			_ = a.Status(ctx)

		case "sync":
			_ = a.Sync(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}
	}
}
