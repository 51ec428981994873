package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dmitrijs2005/buddyinbox/internal/backup"
	"github.com/dmitrijs2005/buddyinbox/internal/clock"
	"github.com/dmitrijs2005/buddyinbox/internal/coordinator"
	"github.com/dmitrijs2005/buddyinbox/internal/logging"
)

type Options struct {
	// BackupDir is where export writes backup files.
	BackupDir string
	// Uploader, when set, receives a copy of every export.
	Uploader *backup.Uploader
	Clock    clock.Clock
	Logger   logging.Logger
	In       io.Reader
	Out      io.Writer
}

type App struct {
	coord     *coordinator.Coordinator
	backupDir string
	uploader  *backup.Uploader
	clk       clock.Clock
	log       logging.Logger
	reader    *bufio.Reader
	out       io.Writer
}

func NewApp(c *coordinator.Coordinator, opts Options) *App {
	a := &App{
		coord:     c,
		backupDir: opts.BackupDir,
		uploader:  opts.Uploader,
		clk:       opts.Clock,
		log:       opts.Logger,
		out:       opts.Out,
	}
	if a.backupDir == "" {
		a.backupDir = "."
	}
	if a.clk == nil {
		a.clk = clock.System{}
	}
	if a.log == nil {
		a.log = logging.Nop()
	}
	in := opts.In
	if in == nil {
		in = os.Stdin
	}
	a.reader = bufio.NewReader(in)
	if a.out == nil {
		a.out = os.Stdout
	}
	return a
}

// Run starts the REPL and blocks until the user exits, input ends or ctx
// is done.
func (a *App) Run(ctx context.Context) {
	printlnFn("Buddy Inbox. Type 'help' for commands.")
	runREPL(ctx, a, a.status, a.reader)
}

func (a *App) isLoggedIn() bool {
	return a.coord.Snapshot().CurrentUser != ""
}

func (a *App) isLocked() bool {
	return a.coord.Snapshot().Locked
}

// status renders the prompt badge, e.g. "ann online room:k3x9 unread:2".
func (a *App) status() string {
	s := a.coord.Snapshot()
	if s.Locked {
		return "[locked]"
	}

	var parts []string
	if s.CurrentUser == "" {
		parts = append(parts, "(not logged in)")
	} else {
		parts = append(parts, s.CurrentUser)
		if s.Online {
			parts = append(parts, "online")
		} else {
			parts = append(parts, "offline")
		}
	}
	if s.Room != "" {
		parts = append(parts, "room:"+s.Room)
	}
	if s.Unread > 0 {
		parts = append(parts, fmt.Sprintf("unread:%d", s.Unread))
	}
	return strings.Join(parts, " ")
}

func (a *App) println(args ...any) {
	fmt.Fprintln(a.out, args...)
}
