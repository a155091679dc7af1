package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"nutrisnap/api/internal/gateway"
	"nutrisnap/api/internal/logx"
	"nutrisnap/api/internal/nutrition"
)

const (
	DefaultHistoryLimit = 20

	ExportName      = "nutrisnap-analyze.json"
	ExportMediaType = "application/json"
)

// Action identifies the user operation behind an Update.
type Action string

const (
	ActionSelect  Action = "select"
	ActionAnalyze Action = "analyze"
	ActionHistory Action = "history"
	ActionVerify  Action = "verify"
	ActionReset   Action = "reset"
)

type Phase int

const (
	PhaseStarted Phase = iota
	PhaseSettled
)

// Update is published after every state transition. Seq grows with every
// transition, so a listener can drop snapshots that arrive out of order.
// An ActionReset update asks the view to clear its picker.
type Update struct {
	Seq    uint64
	Action Action
	Phase  Phase
	Err    error
	Stale  bool
	State  Snapshot
}

// Artifact is a downloadable export of the current result.
type Artifact struct {
	Name      string
	MediaType string
	Data      []byte
}

// Controller owns one user's session state and orchestrates gateway calls.
// Gateway calls run on their own goroutines; their results are applied in
// the order they arrive.
type Controller struct {
	ID string

	gw           gateway.Gateway
	historyLimit int

	mu  sync.Mutex
	st  State
	seq uint64

	lmu       sync.RWMutex
	listeners []func(Update)
}

type Option func(*Controller)

// WithHistoryLimit sets the limit LoadHistory uses when called with limit <= 0.
func WithHistoryLimit(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.historyLimit = n
		}
	}
}

// WithID tags the controller's log lines.
func WithID(id string) Option {
	return func(c *Controller) { c.ID = id }
}

func New(gw gateway.Gateway, opts ...Option) *Controller {
	c := &Controller{gw: gw, historyLimit: DefaultHistoryLimit}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Subscribe registers fn for every subsequent Update. Listeners run on the
// goroutine that made the transition, outside the state lock.
func (c *Controller) Subscribe(fn func(Update)) {
	c.lmu.Lock()
	c.listeners = append(c.listeners, fn)
	c.lmu.Unlock()
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.st.snapshot()
}

// SelectImage replaces the selected image. Non-image media types are ignored.
func (c *Controller) SelectImage(img nutrition.Image) bool {
	c.mu.Lock()
	if !c.st.selectImage(img) {
		c.mu.Unlock()
		logx.Debug().Str("session", c.ID).Str("media_type", img.MediaType).Msg("ignored non-image selection")
		return false
	}
	u := c.updateLocked(ActionSelect, PhaseSettled, nil)
	c.mu.Unlock()

	c.publish(u)
	return true
}

// Analyze sends the selected image for analysis. Without an image, or while
// another analysis is in flight, it is a no-op and returns a skipped task.
func (c *Controller) Analyze(ctx context.Context) *Task {
	c.mu.Lock()
	img, ok := c.st.beginAnalyze()
	if !ok {
		c.mu.Unlock()
		return skippedTask()
	}
	u := c.updateLocked(ActionAnalyze, PhaseStarted, nil)
	c.mu.Unlock()
	c.publish(u)

	logx.Debug().Str("session", c.ID).Str("file", img.Name).Int64("size", img.Size).Msg("analyze started")
	t := newTask()
	go func() {
		res, err := c.gw.AnalyzeImage(ctx, img)

		c.mu.Lock()
		err = c.st.settleAnalyze(res, err)
		u := c.updateLocked(ActionAnalyze, PhaseSettled, err)
		c.mu.Unlock()

		c.logSettled(ActionAnalyze, err)
		c.publish(u)
		t.finish(err, false)
	}()
	return t
}

// LoadHistory replaces the history list with the latest limit entries.
// limit <= 0 selects the configured default.
func (c *Controller) LoadHistory(ctx context.Context, limit int) *Task {
	if limit <= 0 {
		limit = c.historyLimit
	}

	c.mu.Lock()
	c.st.beginHistory()
	u := c.updateLocked(ActionHistory, PhaseStarted, nil)
	c.mu.Unlock()
	c.publish(u)

	t := newTask()
	go func() {
		entries, err := c.gw.FetchHistory(ctx, limit)

		c.mu.Lock()
		c.st.settleHistory(entries, err)
		u := c.updateLocked(ActionHistory, PhaseSettled, err)
		c.mu.Unlock()

		c.logSettled(ActionHistory, err)
		c.publish(u)
		t.finish(err, false)
	}()
	return t
}

// VerifyNutrition looks up the current result's food in the nutrition
// database and attaches the answer to that same result. If the result was
// replaced or cleared before the answer arrived, the answer is dropped.
func (c *Controller) VerifyNutrition(ctx context.Context) *Task {
	c.mu.Lock()
	target, food, ok := c.st.beginVerify()
	if !ok {
		c.mu.Unlock()
		return skippedTask()
	}
	u := c.updateLocked(ActionVerify, PhaseStarted, nil)
	c.mu.Unlock()
	c.publish(u)

	t := newTask()
	go func() {
		lookup, err := c.gw.FetchNutrition(ctx, food)

		c.mu.Lock()
		applied := c.st.settleVerify(target, lookup, err)
		stale := err == nil && !applied
		u := c.updateLocked(ActionVerify, PhaseSettled, err)
		u.Stale = stale
		c.mu.Unlock()

		if stale {
			logx.Debug().Str("session", c.ID).Str("food", food).Msg("dropped stale nutrition lookup")
		}
		c.logSettled(ActionVerify, err)
		c.publish(u)
		t.finish(err, stale)
	}()
	return t
}

// Reset clears the image, result, history and error. An analysis in flight
// keeps Busy set and still lands when it settles.
func (c *Controller) Reset() {
	c.mu.Lock()
	c.st.reset()
	u := c.updateLocked(ActionReset, PhaseSettled, nil)
	c.mu.Unlock()

	c.publish(u)
}

// Export serializes the current result, lookup included, as indented JSON.
// It returns nil when there is no result.
func (c *Controller) Export() (*Artifact, error) {
	c.mu.Lock()
	r := c.st.Result.Clone()
	c.mu.Unlock()
	if r == nil {
		return nil, nil
	}

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return &Artifact{Name: ExportName, MediaType: ExportMediaType, Data: data}, nil
}

func (c *Controller) updateLocked(a Action, p Phase, err error) Update {
	c.seq++
	return Update{Seq: c.seq, Action: a, Phase: p, Err: err, State: c.st.snapshot()}
}

func (c *Controller) publish(u Update) {
	c.lmu.RLock()
	ls := append([]func(Update){}, c.listeners...)
	c.lmu.RUnlock()
	for _, fn := range ls {
		fn(u)
	}
}

func (c *Controller) logSettled(a Action, err error) {
	if err != nil {
		logx.Warn().Err(err).Str("session", c.ID).Str("action", string(a)).Msg("operation failed")
		return
	}
	logx.Debug().Str("session", c.ID).Str("action", string(a)).Msg("operation settled")
}
