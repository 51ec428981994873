package cli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/buddyinbox/internal/backup"
	"github.com/dmitrijs2005/buddyinbox/internal/clock"
	"github.com/dmitrijs2005/buddyinbox/internal/cloud"
	"github.com/dmitrijs2005/buddyinbox/internal/coordinator"
	"github.com/dmitrijs2005/buddyinbox/internal/localstore"
	"github.com/dmitrijs2005/buddyinbox/internal/logging"
	"github.com/dmitrijs2005/buddyinbox/internal/presence"
)

var epoch = time.UnixMilli(1_700_000_000_000)

type memS3 struct {
	objects map[string][]byte
}

func (m *memS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	m.objects[aws.ToString(in.Key)] = body
	return &s3.PutObjectOutput{}, nil
}

func (m *memS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	body, ok := m.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(body))}, nil
}

func newTestApp(t *testing.T, input string, uploader *backup.Uploader) (*App, *bytes.Buffer) {
	t.Helper()
	store := localstore.NewStore(localstore.NewMemoryRepository(), logging.Nop())
	clk := clock.NewFake(epoch)
	c := coordinator.New(store, cloud.LocalOnly{}, coordinator.Options{
		Clock:    clk,
		Logger:   logging.Nop(),
		Presence: presence.Options{HeartbeatInterval: time.Hour},
		BaseURL:  "http://localhost:8080/",
	})
	t.Cleanup(c.Close)
	require.NoError(t, c.Load(context.Background()))

	var out bytes.Buffer
	a := NewApp(c, Options{
		BackupDir: t.TempDir(),
		Uploader:  uploader,
		Clock:     clk,
		In:        strings.NewReader(input),
		Out:       &out,
	})
	return a, &out
}

func TestApp_LoginSendShow(t *testing.T) {
	ctx := context.Background()
	a, out := newTestApp(t, "", nil)

	require.ErrorIs(t, a.Send(ctx, []string{"hi"}), ErrNotLoggedIn)

	require.NoError(t, a.Login(ctx, []string{"ann"}))
	assert.True(t, a.isLoggedIn())
	assert.Equal(t, "ann online", a.status())

	require.NoError(t, a.Send(ctx, []string{"hello", "me"}))

	out.Reset()
	require.NoError(t, a.Show(ctx))
	assert.Contains(t, out.String(), "ann: hello me")

	out.Reset()
	require.NoError(t, a.Users(ctx))
	assert.Equal(t, "ann [online] unread: 0\n", out.String())
}

func TestApp_PromptsForMissingArgs(t *testing.T) {
	ctx := context.Background()
	a, out := newTestApp(t, "bob\nline one\nline two\n\n", nil)

	require.NoError(t, a.Login(ctx, nil))
	require.NoError(t, a.Send(ctx, nil))

	out.Reset()
	require.NoError(t, a.Inbox(ctx))
	assert.Contains(t, out.String(), "bob: line one ...")
}

func TestApp_BlankSendIsIgnored(t *testing.T) {
	ctx := context.Background()
	a, out := newTestApp(t, "\n", nil)
	require.NoError(t, a.Login(ctx, []string{"ann"}))

	out.Reset()
	require.NoError(t, a.Send(ctx, nil))
	assert.Contains(t, out.String(), "Nothing to send.")
}

func TestApp_DeleteAndClear(t *testing.T) {
	ctx := context.Background()
	a, out := newTestApp(t, "", nil)
	require.NoError(t, a.Login(ctx, []string{"ann"}))
	require.NoError(t, a.Send(ctx, []string{"one"}))
	require.NoError(t, a.Send(ctx, []string{"two"}))

	out.Reset()
	require.NoError(t, a.Delete(ctx))
	assert.Equal(t, "Deleted 2 message(s).\n", out.String())

	require.NoError(t, a.Send(ctx, []string{"three"}))
	out.Reset()
	require.NoError(t, a.Clear(ctx))
	assert.Equal(t, "Cleared 1 message(s).\n", out.String())

	out.Reset()
	require.NoError(t, a.Outbox(ctx))
	assert.Equal(t, "Outbox is empty.\n", out.String())
}

func TestApp_LockUnlock(t *testing.T) {
	ctx := context.Background()
	a, out := newTestApp(t, "", nil)
	require.NoError(t, a.Login(ctx, []string{"ann"}))

	old := readPassword
	t.Cleanup(func() { readPassword = old })
	readPassword = func(int) ([]byte, error) { return []byte("1234"), nil }

	require.NoError(t, a.Lock(ctx))
	assert.True(t, a.isLocked())
	assert.Equal(t, "[locked]", a.status())

	out.Reset()
	require.NoError(t, a.Unlock(ctx, nil))
	assert.Contains(t, out.String(), "PIN set. Unlocked.")
	assert.False(t, a.isLocked())

	require.NoError(t, a.Lock(ctx))
	out.Reset()
	require.NoError(t, a.Unlock(ctx, []string{"9999"}))
	assert.Equal(t, "Wrong PIN.\n", out.String())
	assert.True(t, a.isLocked())

	require.ErrorIs(t, a.Delete(ctx), coordinator.ErrLocked)

	out.Reset()
	require.NoError(t, a.Unlock(ctx, []string{"1234"}))
	assert.Equal(t, "Unlocked.\n", out.String())
}

func TestApp_ExportImportFile(t *testing.T) {
	ctx := context.Background()
	a, out := newTestApp(t, "", nil)
	require.NoError(t, a.Login(ctx, []string{"ann"}))
	require.NoError(t, a.Send(ctx, []string{"keep", "me"}))

	out.Reset()
	require.NoError(t, a.Export(ctx))
	path := filepath.Join(a.backupDir, backup.FileName(epoch))
	assert.Equal(t, "Backup written to "+path+"\n", out.String())
	_, err := os.Stat(path)
	require.NoError(t, err)

	require.NoError(t, a.Clear(ctx))
	require.NoError(t, a.Logout(ctx))

	out.Reset()
	require.NoError(t, a.Import(ctx, []string{path}))
	assert.Equal(t, "Import complete.\n", out.String())
	assert.True(t, a.isLoggedIn())

	out.Reset()
	require.NoError(t, a.Show(ctx))
	assert.Contains(t, out.String(), "ann: keep me")
}

func TestApp_ImportInvalidFile(t *testing.T) {
	ctx := context.Background()
	a, out := newTestApp(t, "", nil)

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"data":{"users":"nope"}}`), 0o600))

	require.NoError(t, a.Import(ctx, []string{path}))
	assert.Equal(t, "Import failed: invalid file.\n", out.String())
}

func TestApp_ExportImportS3(t *testing.T) {
	ctx := context.Background()
	store := &memS3{objects: map[string][]byte{}}
	a, out := newTestApp(t, "", backup.NewUploader(store, "bucket"))
	require.NoError(t, a.Login(ctx, []string{"ann"}))
	require.NoError(t, a.Send(ctx, []string{"cloud", "copy"}))

	require.NoError(t, a.Export(ctx))
	key := backup.ObjectKey(epoch, backup.FileName(epoch))
	require.Contains(t, store.objects, key)
	assert.Contains(t, out.String(), "Backup uploaded as "+key)

	require.NoError(t, a.Clear(ctx))
	require.NoError(t, a.Import(ctx, []string{s3Prefix + key}))

	out.Reset()
	require.NoError(t, a.Show(ctx))
	assert.Contains(t, out.String(), "ann: cloud copy")
}

func TestApp_ImportS3WithoutBucket(t *testing.T) {
	a, _ := newTestApp(t, "", nil)
	require.ErrorIs(t, a.Import(context.Background(), []string{"s3:backups/x.json"}), ErrNoUploader)
}

func TestApp_RoomCommands(t *testing.T) {
	ctx := context.Background()
	a, out := newTestApp(t, "", nil)

	require.NoError(t, a.Room(ctx, nil))
	assert.Contains(t, out.String(), "Local mode.")

	out.Reset()
	require.NoError(t, a.Room(ctx, []string{"new", "r1"}))
	assert.Contains(t, out.String(), "Joined room r1")
	assert.Contains(t, out.String(), "Cloud is not configured")
	assert.Contains(t, out.String(), "Share link: http://localhost:8080/?room=r1")

	out.Reset()
	require.NoError(t, a.Room(ctx, []string{"http://localhost:8080/?room=r2"}))
	assert.Equal(t, "r2", a.coord.Room())

	require.NoError(t, a.Room(ctx, []string{"leave"}))
	assert.Equal(t, "", a.coord.Room())

	out.Reset()
	require.NoError(t, a.Link(ctx))
	assert.Equal(t, "No room yet. Use 'room new'.\n", out.String())
}

func TestApp_RunExitsOnQuit(t *testing.T) {
	capturePrint(t)
	a, _ := newTestApp(t, "login ann\nsend hi\nquit\n", nil)

	a.Run(context.Background())

	s := a.coord.Snapshot()
	assert.Equal(t, "ann", s.CurrentUser)
	assert.Equal(t, 1, s.Total)
}
