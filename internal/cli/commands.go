package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/buddyinbox/internal/backup"
	"github.com/dmitrijs2005/buddyinbox/internal/lock"
	"github.com/dmitrijs2005/buddyinbox/internal/models"
	"github.com/dmitrijs2005/buddyinbox/internal/roomlink"
	"github.com/dmitrijs2005/buddyinbox/internal/shared"
	"github.com/dmitrijs2005/buddyinbox/internal/timex"
)

// s3Prefix marks an import argument as an object key in the backup bucket.
const s3Prefix = "s3:"

var (
	ErrNotLoggedIn = errors.New("not logged in")
	ErrNoUploader  = errors.New("no backup bucket configured")
)

func (a *App) Login(ctx context.Context, args []string) error {
	name := strings.Join(args, " ")
	if name == "" {
		var err error
		if name, err = GetSimpleText(a.reader, "Name:", a.out); err != nil {
			return err
		}
	}
	if strings.TrimSpace(name) == "" {
		a.println("Name is required.")
		return nil
	}
	if err := a.coord.Login(ctx, name); err != nil {
		return err
	}
	a.println("Logged in as", strings.TrimSpace(name))
	return nil
}

func (a *App) Logout(ctx context.Context) error {
	if err := a.coord.Logout(ctx); err != nil {
		return err
	}
	a.println("Logged out.")
	return nil
}

// Users prints the user card with its presence badge and unread count.
func (a *App) Users(ctx context.Context) error {
	s := a.coord.Snapshot()
	if len(s.Users) == 0 {
		a.println("No users yet. Use 'login <name>'.")
		return nil
	}
	status := "offline"
	if s.Online {
		status = "online"
	}
	a.println(fmt.Sprintf("%s [%s] unread: %d", s.Users[0], status, s.Unread))
	return nil
}

func (a *App) Send(ctx context.Context, args []string) error {
	if !a.isLoggedIn() {
		return ErrNotLoggedIn
	}
	body := strings.Join(args, " ")
	if body == "" {
		var err error
		if body, err = GetMultiline(a.reader, "Message:", a.out); err != nil {
			return err
		}
	}
	ok, err := a.coord.Send(ctx, body)
	if err != nil {
		return err
	}
	if !ok {
		a.println("Nothing to send.")
		return nil
	}
	a.println("Sent.")
	return nil
}

// Show prints the conversation oldest first and marks it read.
func (a *App) Show(ctx context.Context) error {
	if !a.isLoggedIn() {
		return ErrNotLoggedIn
	}
	msgs, err := a.coord.OpenConversation(ctx)
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		a.println("No messages yet. Send yourself something!")
		return nil
	}
	for _, m := range msgs {
		a.println(formatMessage(m))
	}
	return nil
}

func (a *App) Inbox(ctx context.Context) error {
	if !a.isLoggedIn() {
		return ErrNotLoggedIn
	}
	a.printList(a.coord.Snapshot().Inbox, "Inbox is empty.")
	return nil
}

func (a *App) Outbox(ctx context.Context) error {
	if !a.isLoggedIn() {
		return ErrNotLoggedIn
	}
	a.printList(a.coord.Snapshot().Outbox, "Outbox is empty.")
	return nil
}

func (a *App) printList(msgs []models.Message, empty string) {
	if len(msgs) == 0 {
		a.println(empty)
		return
	}
	for _, m := range msgs {
		a.println(formatPreview(m))
	}
}

func (a *App) Delete(ctx context.Context) error {
	if !a.isLoggedIn() {
		return ErrNotLoggedIn
	}
	n, err := a.coord.DeleteConversation(ctx)
	if err != nil {
		return err
	}
	a.println(fmt.Sprintf("Deleted %d message(s).", n))
	return nil
}

func (a *App) Clear(ctx context.Context) error {
	n, err := a.coord.ClearAll(ctx)
	if err != nil {
		return err
	}
	a.println(fmt.Sprintf("Cleared %d message(s).", n))
	return nil
}

func (a *App) Lock(ctx context.Context) error {
	if err := a.coord.Lock(ctx); err != nil {
		return err
	}
	a.println("Locked.")
	return nil
}

// Unlock takes the PIN from args or reads it without echo.
func (a *App) Unlock(ctx context.Context, args []string) error {
	var pin []byte
	if len(args) > 0 {
		pin = []byte(strings.Join(args, " "))
	} else {
		if a.coord.OverlayMode() == models.OverlaySet {
			a.println("No PIN set yet; the PIN you enter now becomes the PIN.")
		}
		var err error
		if pin, err = GetPIN(a.out); err != nil {
			return err
		}
	}
	defer shared.WipeByteArray(pin)

	res, err := a.coord.Unlock(ctx, string(pin))
	if err != nil {
		return err
	}
	switch res {
	case lock.ResultEmpty:
		a.println("PIN is required.")
	case lock.ResultSet:
		a.println("PIN set. Unlocked.")
	case lock.ResultUnlocked:
		a.println("Unlocked.")
	case lock.ResultWrongPIN:
		a.println("Wrong PIN.")
	}
	return nil
}

// Export writes a backup file and, when a bucket is configured, uploads a copy.
func (a *App) Export(ctx context.Context) error {
	data, err := a.coord.Export(ctx)
	if err != nil {
		return err
	}
	now := a.clk.Now()
	path, err := backup.WriteFile(a.backupDir, now, data)
	if err != nil {
		return err
	}
	a.println("Backup written to", path)

	if a.uploader != nil {
		key, err := a.uploader.Upload(ctx, now, data)
		if err != nil {
			a.log.Warn(ctx, "backup upload failed", "error", err)
			return err
		}
		a.println("Backup uploaded as", key)
	}
	return nil
}

// Import restores a backup from a file path, or from the bucket when the
// argument starts with "s3:".
func (a *App) Import(ctx context.Context, args []string) error {
	src := strings.Join(args, " ")
	if src == "" {
		var err error
		if src, err = GetSimpleText(a.reader, "Backup file (or s3:<key>):", a.out); err != nil {
			return err
		}
	}
	if src == "" {
		return nil
	}

	var (
		raw []byte
		err error
	)
	if key, ok := strings.CutPrefix(src, s3Prefix); ok {
		if a.uploader == nil {
			return ErrNoUploader
		}
		raw, err = a.uploader.Download(ctx, key)
	} else {
		raw, err = backup.ReadFile(src)
	}
	if err != nil {
		return err
	}

	if err := a.coord.Import(ctx, raw); err != nil {
		if errors.Is(err, backup.ErrInvalidBackup) {
			a.println("Import failed: invalid file.")
			return nil
		}
		return err
	}
	a.println("Import complete.")
	return nil
}

// Room manages the cloud room:
//
//	room              show the current room and its link
//	room new [id]     create and join a room
//	room leave        return to local mode
//	room <id|link>    join an existing room
func (a *App) Room(ctx context.Context, args []string) error {
	if len(args) == 0 {
		room := a.coord.Room()
		if room == "" {
			a.println("Local mode. Use 'room new' to create a cloud room.")
			return nil
		}
		a.println("Room:", room)
		return a.Link(ctx)
	}

	switch args[0] {
	case "new":
		want := ""
		if len(args) > 1 {
			want = args[1]
		}
		room, err := a.coord.CreateRoom(ctx, want)
		if err != nil {
			return err
		}
		a.println("Joined room", room)
		a.warnIfLocalOnly()
		return a.Link(ctx)

	case "leave":
		if err := a.coord.SwitchRoom(ctx, ""); err != nil {
			return err
		}
		a.println("Back to local mode.")
		return nil

	default:
		room, err := roomlink.Parse(args[0])
		if err != nil {
			return err
		}
		if err := a.coord.SwitchRoom(ctx, room); err != nil {
			return err
		}
		a.println("Joined room", room)
		a.warnIfLocalOnly()
		return nil
	}
}

func (a *App) warnIfLocalOnly() {
	if !a.coord.Snapshot().CloudEnabled {
		a.println("Cloud is not configured; messages stay on this device.")
	}
}

func (a *App) Link(ctx context.Context) error {
	link, err := a.coord.RoomLink()
	if err != nil {
		return err
	}
	if link == "" {
		a.println("No room yet. Use 'room new'.")
		return nil
	}
	a.println("Share link:", link)
	return nil
}

func formatMessage(m models.Message) string {
	return fmt.Sprintf("[%s] %s: %s", timex.FormatMillis(m.TS), m.From, m.Body)
}

// formatPreview is formatMessage cut to the first line.
func formatPreview(m models.Message) string {
	body, _, cut := strings.Cut(m.Body, "\n")
	if cut {
		body += " ..."
	}
	return fmt.Sprintf("[%s] %s: %s", timex.FormatMillis(m.TS), m.From, body)
}
