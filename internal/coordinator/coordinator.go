package coordinator

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/buddyinbox/internal/clock"
	"github.com/dmitrijs2005/buddyinbox/internal/cloud"
	"github.com/dmitrijs2005/buddyinbox/internal/ledger"
	"github.com/dmitrijs2005/buddyinbox/internal/localstore"
	"github.com/dmitrijs2005/buddyinbox/internal/lock"
	"github.com/dmitrijs2005/buddyinbox/internal/logging"
	"github.com/dmitrijs2005/buddyinbox/internal/models"
	"github.com/dmitrijs2005/buddyinbox/internal/presence"
)

type Options struct {
	Clock    clock.Clock
	Logger   logging.Logger
	Presence presence.Options
	Ledger   []ledger.Option
	// Room is joined by Load.
	Room string
	// BaseURL is the page room links point at.
	BaseURL string
}

type Coordinator struct {
	store   *localstore.Store
	mirror  cloud.Mirror
	tracker *presence.Tracker
	clk     clock.Clock
	log     logging.Logger
	baseURL string

	// bg outlives single calls; the heartbeat loop and room subscriptions
	// run under it until Close.
	bg        context.Context
	cancel    context.CancelFunc
	unwatch   func()
	closeOnce sync.Once

	mu      sync.Mutex
	ledger  *ledger.Ledger
	users   []string
	session models.Session
	room    string
	src     source
	sub     cloud.Subscription
	gen     uint64

	lmu       sync.Mutex
	listeners map[int]func()
	nextID    int
}

func New(store *localstore.Store, mirror cloud.Mirror, opts Options) *Coordinator {
	if opts.Clock == nil {
		opts.Clock = clock.System{}
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	if mirror == nil {
		mirror = cloud.LocalOnly{}
	}

	bg, cancel := context.WithCancel(context.Background())
	c := &Coordinator{
		store:     store,
		mirror:    mirror,
		clk:       opts.Clock,
		log:       opts.Logger.With("component", "coordinator"),
		baseURL:   opts.BaseURL,
		bg:        bg,
		cancel:    cancel,
		ledger:    ledger.New(opts.Ledger...),
		users:     []string{},
		room:      strings.TrimSpace(opts.Room),
		listeners: make(map[int]func()),
	}

	popts := opts.Presence
	onBeat := popts.OnBeat
	popts.OnBeat = func() {
		if onBeat != nil {
			onBeat()
		}
		c.emit()
	}
	c.tracker = presence.NewTracker(store, c.clk, opts.Logger, popts)
	c.src = c.sourceFor(c.room)
	c.unwatch = store.Subscribe(c.onStoreChange)
	return c
}

// Load reads every key, resumes the heartbeat of a stored session and
// joins the configured room.
func (c *Coordinator) Load(ctx context.Context) error {
	if err := c.store.Prime(ctx); err != nil {
		return err
	}

	c.mu.Lock()
	c.readUsersLocked(ctx)
	c.readCurrentUserLocked(ctx)
	c.readLockLocked(ctx)
	c.tracker.Reload(ctx)
	c.src.load(ctx)
	user := c.session.CurrentUser
	c.mu.Unlock()

	if user != "" {
		if err := c.tracker.Start(c.bg, user); err != nil {
			c.log.Warn(ctx, "presence start failed", "user", user, "error", err)
		}
	}
	if err := c.attach(); err != nil {
		c.log.Warn(ctx, "room subscribe failed", "room", c.Room(), "error", err)
	}

	c.log.Info(ctx, "state loaded", "user", user, "room", c.Room())
	c.emit()
	return nil
}

// Refresh re-reads users, local messages, presence and lock state. The
// current user is per process and is not re-read.
func (c *Coordinator) Refresh(ctx context.Context) {
	c.mu.Lock()
	c.readUsersLocked(ctx)
	if !c.src.remote() {
		c.src.load(ctx)
	}
	c.tracker.Reload(ctx)
	c.readLockLocked(ctx)
	c.mu.Unlock()

	c.emit()
}

func (c *Coordinator) onStoreChange(ch localstore.Change) {
	switch ch.Key {
	case localstore.KeyUsers, localstore.KeyPresence, localstore.KeyPinHash, localstore.KeyLocked:
	case localstore.KeyMessages:
		c.mu.Lock()
		remote := c.src.remote()
		c.mu.Unlock()
		if remote {
			return
		}
	default:
		return
	}
	c.log.Debug(c.bg, "external change", "key", ch.Key, "removed", ch.Removed)
	c.Refresh(c.bg)
}

// Run watches the store for changes made by other processes until ctx is
// done, then releases everything the coordinator holds.
func (c *Coordinator) Run(ctx context.Context, watchInterval time.Duration) error {
	defer c.Close()
	return c.store.Watch(ctx, watchInterval)
}

// Close stops the heartbeat and the room subscription. It is safe to call
// more than once.
func (c *Coordinator) Close() {
	c.closeOnce.Do(func() {
		c.unwatch()
		c.tracker.Stop()

		c.mu.Lock()
		sub := c.detachLocked()
		c.mu.Unlock()
		closeSub(sub)

		c.cancel()
	})
}

// OnChange registers fn to run after every state change.
func (c *Coordinator) OnChange(fn func()) (cancel func()) {
	c.lmu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.lmu.Unlock()

	return func() {
		c.lmu.Lock()
		delete(c.listeners, id)
		c.lmu.Unlock()
	}
}

func (c *Coordinator) emit() {
	c.lmu.Lock()
	fns := make([]func(), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.lmu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Snapshot returns what a UI needs to render. Messages are hidden while
// the lock screen is up.
func (c *Coordinator) Snapshot() models.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	user := c.session.CurrentUser
	s := models.Snapshot{
		Users:        slices.Clone(c.users),
		CurrentUser:  user,
		Room:         c.room,
		CloudEnabled: c.src.remote(),
		Total:        c.ledger.Len(),
		Locked:       c.session.Locked,
		Overlay:      lock.ModeFor(c.session.Locked, c.session.PinHash),
		Conversation: []models.Message{},
		Inbox:        []models.Message{},
		Outbox:       []models.Message{},
	}
	if s.Users == nil {
		s.Users = []string{}
	}
	if len(c.users) > 0 {
		card := c.users[0]
		s.Online = c.tracker.IsOnline(card)
		if user != "" {
			s.Unread = c.ledger.UnreadCount(card, card)
		}
	}
	if user != "" && !c.session.Locked {
		s.Conversation = c.ledger.Conversation(user, user)
		s.Inbox = c.ledger.Recent(user, ledger.FieldTo, ledger.DefaultRecentLimit)
		s.Outbox = c.ledger.Recent(user, ledger.FieldFrom, ledger.DefaultRecentLimit)
	}
	return s
}

// Now reads the coordinator clock.
func (c *Coordinator) Now() time.Time {
	return c.clk.Now()
}

func (c *Coordinator) Room() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.room
}

func (c *Coordinator) readUsersLocked(ctx context.Context) {
	var users []string
	if !c.store.GetJSON(ctx, localstore.KeyUsers, &users) || users == nil {
		users = []string{}
	}
	c.users = users
}

func (c *Coordinator) readCurrentUserLocked(ctx context.Context) {
	var user string
	if !c.store.GetJSON(ctx, localstore.KeyCurrentUser, &user) {
		user = ""
	}
	c.session.CurrentUser = strings.TrimSpace(user)
}

func (c *Coordinator) readLockLocked(ctx context.Context) {
	hash, _ := c.store.GetString(ctx, localstore.KeyPinHash)
	c.session.PinHash = hash

	var locked bool
	if !c.store.GetJSON(ctx, localstore.KeyLocked, &locked) {
		locked = false
	}
	c.session.Locked = locked
}
