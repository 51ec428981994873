package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	isLocked() bool
	Login(ctx context.Context, args []string) error
	Logout(ctx context.Context) error
	Users(ctx context.Context) error
	Send(ctx context.Context, args []string) error
	Show(ctx context.Context) error
	Inbox(ctx context.Context) error
	Outbox(ctx context.Context) error
	Delete(ctx context.Context) error
	Clear(ctx context.Context) error
	Lock(ctx context.Context) error
	Unlock(ctx context.Context, args []string) error
	Export(ctx context.Context) error
	Import(ctx context.Context, args []string) error
	Room(ctx context.Context, args []string) error
	Link(ctx context.Context) error
}

// runREPL reads commands line by line from reader and dispatches them to a
// until input ends, ctx is done, or the user types "exit" or "quit".
//
// Prompt & Commands
//
// The prompt shows the current status (from statusFn) and accepts commands:
//
//	Locked:
//	  - unlock [pin]   unlock, or set the PIN on first use
//	  - exit | quit    leave the program
//
//	Not logged in:
//	  - login [name]   log in
//	  - users          show the user card
//	  - room ...       join, create or leave a room
//	  - import <path>  restore a backup
//	  - clear          remove every message
//
//	Logged in, additionally:
//	  - send [text]    message yourself (no text: multi-line prompt)
//	  - show           print the conversation and mark it read
//	  - inbox | outbox latest 20 received / sent
//	  - delete         delete the conversation
//	  - lock, export, link, logout
//
// Handler errors are printed and the loop goes on.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		if ctx.Err() != nil {
			return
		}
		printlnFn(fmt.Sprintf("buddy %s> ", statusFn()))
		line, err := readLine(reader)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				printlnFn("read error:", err)
			}
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := strings.ToLower(parts[0]), parts[1:]

		if a.isLocked() && cmd != "unlock" && cmd != "exit" && cmd != "quit" && cmd != "help" {
			printlnFn("Locked. Type 'unlock' to continue.")
			continue
		}

		var cmdErr error
		switch cmd {
		case "help":
			switch {
			case a.isLocked():
				printlnFn("Available commands: unlock, exit")
			case a.isLoggedIn():
				printlnFn("Available commands: send, show, inbox, outbox, users, delete, clear, lock, export, import, room, link, logout, exit")
			default:
				printlnFn("Available commands: login, users, room, link, import, clear, exit")
			}

		case "login":
			cmdErr = a.Login(ctx, args)
		case "logout":
			cmdErr = a.Logout(ctx)
		case "users":
			cmdErr = a.Users(ctx)
		case "send", "s":
			cmdErr = a.Send(ctx, args)
		case "show":
			cmdErr = a.Show(ctx)
		case "inbox":
			cmdErr = a.Inbox(ctx)
		case "outbox":
			cmdErr = a.Outbox(ctx)
		case "delete":
			cmdErr = a.Delete(ctx)
		case "clear":
			cmdErr = a.Clear(ctx)
		case "lock":
			cmdErr = a.Lock(ctx)
		case "unlock":
			cmdErr = a.Unlock(ctx, args)
		case "export":
			cmdErr = a.Export(ctx)
		case "import":
			cmdErr = a.Import(ctx, args)
		case "room":
			cmdErr = a.Room(ctx, args)
		case "link":
			cmdErr = a.Link(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}

		if cmdErr != nil {
			printlnFn("error:", cmdErr)
		}
	}
}
