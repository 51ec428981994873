package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExec struct {
	loggedIn bool
	locked   bool

	calls []string
	args  [][]string
	err   error
}

func (f *fakeExec) record(name string, args []string) error {
	f.calls = append(f.calls, name)
	f.args = append(f.args, args)
	return f.err
}

func (f *fakeExec) isLoggedIn() bool { return f.loggedIn }
func (f *fakeExec) isLocked() bool   { return f.locked }
func (f *fakeExec) Login(ctx context.Context, args []string) error {
	f.loggedIn = true
	return f.record("login", args)
}
func (f *fakeExec) Logout(ctx context.Context) error {
	f.loggedIn = false
	return f.record("logout", nil)
}
func (f *fakeExec) Users(ctx context.Context) error { return f.record("users", nil) }
func (f *fakeExec) Send(ctx context.Context, args []string) error {
	return f.record("send", args)
}
func (f *fakeExec) Show(ctx context.Context) error   { return f.record("show", nil) }
func (f *fakeExec) Inbox(ctx context.Context) error  { return f.record("inbox", nil) }
func (f *fakeExec) Outbox(ctx context.Context) error { return f.record("outbox", nil) }
func (f *fakeExec) Delete(ctx context.Context) error { return f.record("delete", nil) }
func (f *fakeExec) Clear(ctx context.Context) error  { return f.record("clear", nil) }
func (f *fakeExec) Lock(ctx context.Context) error {
	f.locked = true
	return f.record("lock", nil)
}
func (f *fakeExec) Unlock(ctx context.Context, args []string) error {
	f.locked = false
	return f.record("unlock", args)
}
func (f *fakeExec) Export(ctx context.Context) error { return f.record("export", nil) }
func (f *fakeExec) Import(ctx context.Context, args []string) error {
	return f.record("import", args)
}
func (f *fakeExec) Room(ctx context.Context, args []string) error {
	return f.record("room", args)
}
func (f *fakeExec) Link(ctx context.Context) error { return f.record("link", nil) }

func capturePrint(t *testing.T) *[]string {
	t.Helper()
	var lines []string
	orig := printlnFn
	printlnFn = func(a ...any) (int, error) {
		lines = append(lines, strings.TrimSuffix(fmt.Sprintln(a...), "\n"))
		return 0, nil
	}
	t.Cleanup(func() { printlnFn = orig })
	return &lines
}

func TestRunREPL_DispatchesCommands(t *testing.T) {
	capturePrint(t)

	input := strings.NewReader(strings.Join([]string{
		"help",
		"login ann",
		"",
		"send hello there",
		"show",
		"inbox",
		"outbox",
		"users",
		"room new r1",
		"link",
		"export",
		"import ./b.json",
		"delete",
		"clear",
		"logout",
		"exit",
		"show",
	}, "\n"))

	exec := &fakeExec{}
	runREPL(context.Background(), exec, func() string { return "status" }, bufio.NewReader(input))

	assert.Equal(t, []string{
		"login", "send", "show", "inbox", "outbox", "users", "room", "link",
		"export", "import", "delete", "clear", "logout",
	}, exec.calls)
	assert.Equal(t, []string{"ann"}, exec.args[0])
	assert.Equal(t, []string{"hello", "there"}, exec.args[1])
	assert.Equal(t, []string{"new", "r1"}, exec.args[6])
}

func TestRunREPL_LockedAllowsOnlyUnlock(t *testing.T) {
	lines := capturePrint(t)

	input := strings.NewReader("lock\nsend hi\nshow\nunlock 1234\nshow\nquit\n")
	exec := &fakeExec{loggedIn: true}
	runREPL(context.Background(), exec, func() string { return "" }, bufio.NewReader(input))

	assert.Equal(t, []string{"lock", "unlock", "show"}, exec.calls)
	assert.Contains(t, *lines, "Locked. Type 'unlock' to continue.")
	assert.Equal(t, "Bye!", (*lines)[len(*lines)-1])
}

func TestRunREPL_UnknownAndErrors(t *testing.T) {
	lines := capturePrint(t)

	exec := &fakeExec{err: errors.New("boom")}
	runREPL(context.Background(), exec, func() string { return "" }, bufio.NewReader(strings.NewReader("foobar\nusers\n")))

	require.Equal(t, []string{"users"}, exec.calls)
	assert.Contains(t, *lines, "Unknown command: foobar")
	assert.Contains(t, *lines, "error: boom")
}

func TestRunREPL_StopsOnCancelledContext(t *testing.T) {
	capturePrint(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	exec := &fakeExec{}
	runREPL(ctx, exec, func() string { return "" }, bufio.NewReader(strings.NewReader("users\n")))
	assert.Empty(t, exec.calls)
}

func TestRunREPL_HelpDependsOnState(t *testing.T) {
	tests := []struct {
		name     string
		exec     *fakeExec
		contains string
	}{
		{"logged out", &fakeExec{}, "login"},
		{"logged in", &fakeExec{loggedIn: true}, "send"},
		{"locked", &fakeExec{locked: true}, "unlock"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lines := capturePrint(t)
			runREPL(context.Background(), tt.exec, func() string { return "" }, bufio.NewReader(strings.NewReader("help\n")))

			var help string
			for _, l := range *lines {
				if strings.HasPrefix(l, "Available commands:") {
					help = l
				}
			}
			assert.Contains(t, help, tt.contains)
		})
	}
}
