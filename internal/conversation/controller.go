// Package conversation drives the per-user chat flows: single lookups, batch
// lookups, feedback and the informational commands around them.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xaenox/rc-intel-bot/internal/cache"
	"github.com/xaenox/rc-intel-bot/internal/classifier"
	"github.com/xaenox/rc-intel-bot/internal/lookup"
	"github.com/xaenox/rc-intel-bot/internal/metrics"
	"github.com/xaenox/rc-intel-bot/internal/models"
	"github.com/xaenox/rc-intel-bot/internal/quota"
	"github.com/xaenox/rc-intel-bot/internal/report"
	"github.com/xaenox/rc-intel-bot/internal/storage"
	"github.com/xaenox/rc-intel-bot/internal/upstream"
)

const (
	DefaultBatchMaxSize      = 10
	DefaultBatchItemDelay    = 2 * time.Second
	DefaultMinFeedbackLength = 10
	recentQueriesShown       = 5
	recentFeedbackShown      = 3
)

var ErrQuotaExceeded = errors.New("daily quota exceeded")

type Action int

const (
	ActionStart Action = iota
	ActionHelp
	ActionMenu
	ActionLookup
	ActionBatch
	ActionFeedback
	ActionStats
	ActionAdmin
	ActionCancel
	ActionText
	ActionPremium
	ActionBan
	ActionUnban
	ActionBroadcast
)

func (a Action) String() string {
	switch a {
	case ActionStart:
		return "start"
	case ActionHelp:
		return "help"
	case ActionMenu:
		return "menu"
	case ActionLookup:
		return "lookup"
	case ActionBatch:
		return "batch"
	case ActionFeedback:
		return "feedback"
	case ActionStats:
		return "stats"
	case ActionAdmin:
		return "admin"
	case ActionCancel:
		return "cancel"
	case ActionText:
		return "text"
	case ActionPremium:
		return "premium"
	case ActionBan:
		return "ban"
	case ActionUnban:
		return "unban"
	case ActionBroadcast:
		return "broadcast"
	}
	return fmt.Sprintf("action(%d)", int(a))
}

// Event is one inbound user interaction. Text carries the message body for
// ActionText and the command arguments for admin actions.
type Event struct {
	Action   Action
	Identity models.Identity
	ChatID   int64
	Text     string
}

// Menu selects the inline keyboard attached to a reply.
type Menu int

const (
	NoMenu Menu = iota
	MainMenu
	BackMenu
	AfterLookupMenu
	AdminMenu
)

type Reply struct {
	Text     string
	Markdown bool
	Menu     Menu
}

// Outbox delivers replies to a chat.
type Outbox interface {
	Send(ctx context.Context, chatID int64, reply Reply) error
}

type Lookuper interface {
	Lookup(ctx context.Context, id string) (*models.IntelReport, error)
}

type Store interface {
	storage.UserStorage
	storage.QueryStorage
	storage.FeedbackStorage
	storage.StatsStorage
}

type Options struct {
	BatchMaxSize      int
	BatchItemDelay    time.Duration
	MinFeedbackLength int
	AdminIDs          []int64
	// Sleep waits between batch items; it must return early when ctx is done.
	Sleep func(ctx context.Context, d time.Duration) error
}

type Deps struct {
	Ledger     *quota.Ledger
	Lookups    Lookuper
	Store      Store
	Cache      *cache.Cache // optional; overrides the store's cache size on the dashboard
	Classifier classifier.Classifier
	Outbox     Outbox
	Logger     *zap.Logger
	Metrics    *metrics.Metrics
}

type Controller struct {
	sessions   *Sessions
	ledger     *quota.Ledger
	lookups    Lookuper
	store      Store
	cache      *cache.Cache
	classifier classifier.Classifier
	outbox     Outbox
	logger     *zap.Logger
	metrics    *metrics.Metrics
	opts       Options
	admins     map[int64]bool
	now        func() time.Time
}

func NewController(deps Deps, opts Options) (*Controller, error) {
	if deps.Ledger == nil || deps.Lookups == nil || deps.Store == nil || deps.Outbox == nil {
		return nil, fmt.Errorf("conversation: ledger, lookups, store and outbox are required")
	}

	machine, err := NewMachine(DefaultTransitions())
	if err != nil {
		return nil, fmt.Errorf("invalid transition table: %w", err)
	}

	if opts.BatchMaxSize <= 0 {
		opts.BatchMaxSize = DefaultBatchMaxSize
	}
	if opts.BatchItemDelay < 0 {
		opts.BatchItemDelay = 0
	}
	if opts.MinFeedbackLength <= 0 {
		opts.MinFeedbackLength = DefaultMinFeedbackLength
	}
	if opts.Sleep == nil {
		opts.Sleep = upstream.SleepContext
	}
	if deps.Classifier == nil {
		deps.Classifier = classifier.NewKeywordClassifier()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	admins := make(map[int64]bool, len(opts.AdminIDs))
	for _, id := range opts.AdminIDs {
		admins[id] = true
	}

	return &Controller{
		sessions:   NewSessions(machine, deps.Metrics),
		ledger:     deps.Ledger,
		lookups:    deps.Lookups,
		store:      deps.Store,
		cache:      deps.Cache,
		classifier: deps.Classifier,
		outbox:     deps.Outbox,
		logger:     deps.Logger,
		metrics:    deps.Metrics,
		opts:       opts,
		admins:     admins,
		now:        time.Now,
	}, nil
}

// WithClock replaces the clock used for query and feedback timestamps.
func (c *Controller) WithClock(now func() time.Time) *Controller {
	c.now = now
	return c
}

// State returns the current conversation state of a user.
func (c *Controller) State(userID int64) State {
	return c.sessions.Get(userID).State()
}

func (c *Controller) IsAdmin(userID int64) bool {
	return c.admins[userID]
}

// turn carries everything one Handle call needs.
type turn struct {
	ctx    context.Context
	ev     Event
	sess   *Session
	epoch  uint64
	logger *zap.Logger
}

// Handle processes one event. Turns of the same user run one at a time,
// except Cancel which must be able to interrupt a running batch. Errors and
// panics are logged, reported to the user generically, and reset the session.
func (c *Controller) Handle(ctx context.Context, ev Event) {
	turnID := uuid.NewString()
	t := &turn{
		ctx:  ctx,
		ev:   ev,
		sess: c.sessions.Get(ev.Identity.ID),
		logger: c.logger.With(
			zap.String("turn_id", turnID),
			zap.Int64("user_id", ev.Identity.ID),
			zap.Int64("chat_id", ev.ChatID),
			zap.Stringer("action", ev.Action)),
	}

	if ev.Action == ActionCancel {
		c.run(t, c.cancel)
		return
	}

	t.sess.turn.Lock()
	defer t.sess.turn.Unlock()
	t.epoch = t.sess.Epoch()
	c.run(t, c.dispatch)
}

func (c *Controller) run(t *turn, fn func(*turn) error) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("Panic while handling event",
				zap.Any("panic", r),
				zap.Stack("stack"))
			c.fail(t)
		}
	}()

	if err := fn(t); err != nil {
		t.logger.Error("Failed to handle event",
			zap.Error(err),
			zap.Stringer("state", t.sess.State()))
		c.fail(t)
	}
}

func (c *Controller) fail(t *turn) {
	c.sessions.Reset(t.sess)
	c.send(t, Reply{Text: msgGenericError, Menu: BackMenu})
}

func (c *Controller) dispatch(t *turn) error {
	if err := c.store.TouchUser(t.ctx, t.ev.Identity, c.now()); err != nil {
		t.logger.Warn("Failed to update user", zap.Error(err))
	}

	switch t.ev.Action {
	case ActionStart:
		return c.start(t)
	case ActionMenu:
		return c.menu(t)
	case ActionHelp:
		return c.help(t)
	case ActionLookup:
		return c.beginLookup(t)
	case ActionBatch:
		return c.beginBatch(t)
	case ActionFeedback:
		return c.beginFeedback(t)
	case ActionStats:
		return c.stats(t)
	case ActionAdmin:
		return c.admin(t)
	case ActionPremium, ActionBan, ActionUnban:
		return c.moderate(t)
	case ActionBroadcast:
		return c.broadcast(t)
	case ActionText:
		return c.text(t)
	}
	return fmt.Errorf("unsupported action %s", t.ev.Action)
}

func (c *Controller) text(t *turn) error {
	switch t.sess.State() {
	case AwaitingIdentifier:
		return c.handleIdentifier(t)
	case AwaitingBatchInput:
		return c.handleBatch(t)
	case AwaitingFeedback:
		return c.handleFeedback(t)
	}
	c.send(t, Reply{Text: msgIdleHint, Menu: MainMenu})
	return nil
}

func (c *Controller) start(t *turn) error {
	if err := c.sessions.Fire(t.sess, TriggerCancel); err != nil {
		return err
	}
	c.send(t, Reply{Text: welcomeText(t.ev.Identity.FirstName, c.ledger.Limit()), Markdown: true, Menu: MainMenu})
	return nil
}

func (c *Controller) menu(t *turn) error {
	if err := c.sessions.Fire(t.sess, TriggerCancel); err != nil {
		return err
	}
	c.send(t, Reply{Text: menuText(t.ev.Identity.FirstName), Markdown: true, Menu: MainMenu})
	return nil
}

func (c *Controller) help(t *turn) error {
	c.send(t, Reply{Text: helpText(c.ledger.Limit(), c.opts.BatchMaxSize), Markdown: true, Menu: BackMenu})
	return nil
}

func (c *Controller) cancel(t *turn) error {
	if err := c.sessions.Cancel(t.sess); err != nil {
		return err
	}
	t.logger.Info("Operation cancelled")
	c.send(t, Reply{Text: msgCancelled, Menu: BackMenu})
	return nil
}

// advance applies trigger at the end of a turn. It reports false when a
// concurrent cancel already returned the session to Idle; the turn then
// stops without further replies.
func (c *Controller) advance(t *turn, trigger Trigger) (bool, error) {
	ok, err := c.sessions.FireUnlessCancelled(t.sess, t.epoch, trigger)
	if err == nil && !ok {
		t.logger.Info("Turn cancelled before completion", zap.Stringer("trigger", trigger))
	}
	return ok, err
}

// requireQuota returns the remaining quota or ErrQuotaExceeded. A denied
// user is told why and the session returns to Idle.
func (c *Controller) requireQuota(t *turn) (int, error) {
	allowed, remaining, err := c.ledger.Check(t.ctx, t.ev.Identity.ID)
	if err != nil {
		return 0, err
	}
	if allowed {
		return remaining, nil
	}

	c.metrics.IncrementQuotaDenials()
	t.logger.Info("Quota exceeded")

	text := quotaReachedText(c.ledger.Limit())
	if user, err := c.store.GetUser(t.ctx, t.ev.Identity.ID); err == nil && user != nil && user.IsBanned {
		text = msgBanned
	}
	if err := c.sessions.Fire(t.sess, TriggerCancel); err != nil {
		return 0, err
	}
	c.send(t, Reply{Text: text, Markdown: true, Menu: BackMenu})
	return 0, ErrQuotaExceeded
}

// logQuery appends to the query log. Failures only lose history.
func (c *Controller) logQuery(t *turn, id string, lookupErr error) {
	q := &models.QueryRecord{
		UserID:       t.ev.Identity.ID,
		RCNumber:     id,
		Timestamp:    c.now(),
		Success:      lookupErr == nil,
		ErrorMessage: lookup.Describe(lookupErr),
	}
	if err := c.store.LogQuery(t.ctx, q); err != nil {
		t.logger.Error("Failed to log query", zap.Error(err), zap.String("rc_number", id))
	}
}

// sendReport sends a formatted report, split into chunks that fit a message.
func (c *Controller) sendReport(t *turn, r *models.IntelReport) {
	for _, part := range report.Split(report.Format(r), report.MessageLimit) {
		c.send(t, Reply{Text: part, Markdown: true})
	}
}

func (c *Controller) send(t *turn, reply Reply) {
	if err := c.outbox.Send(t.ctx, t.ev.ChatID, reply); err != nil {
		t.logger.Warn("Failed to send reply", zap.Error(err))
	}
}

func (c *Controller) requireAdmin(t *turn) bool {
	if c.IsAdmin(t.ev.Identity.ID) {
		return true
	}
	t.logger.Warn("Unauthorized admin command")
	c.send(t, Reply{Text: msgAdminOnly})
	return false
}
