package yunhu

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"
)

// EventHandler consumes enriched events. Errors are logged by the dispatcher.
type EventHandler interface {
	HandleEvent(ctx context.Context, bot *Bot, ev Event) error
}

// EventHandlerFunc adapts a function to EventHandler.
type EventHandlerFunc func(ctx context.Context, bot *Bot, ev Event) error

func (f EventHandlerFunc) HandleEvent(ctx context.Context, bot *Bot, ev Event) error {
	return f(ctx, bot, ev)
}

// BotTable maps app IDs to connected bots. It is filled during startup and
// only read while serving webhooks.
type BotTable struct {
	mu   sync.RWMutex
	bots map[string]*Bot
}

// NewBotTable returns an empty table.
func NewBotTable() *BotTable {
	return &BotTable{bots: map[string]*Bot{}}
}

// Add registers bot under its app ID, replacing any previous entry.
func (t *BotTable) Add(bot *Bot) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.bots[bot.SelfID()] = bot
}

// Get returns the bot registered for appID.
func (t *BotTable) Get(appID string) (*Bot, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	bot, ok := t.bots[appID]
	return bot, ok
}

// List returns the registered bots ordered by app ID.
func (t *BotTable) List() []*Bot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*Bot, 0, len(t.bots))
	for _, bot := range t.bots {
		out = append(out, bot)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SelfID() < out[j].SelfID() })
	return out
}

// Observer receives dispatch outcomes, typically to export metrics.
type Observer interface {
	ObserveDelivery(outcome string)
	ObserveEvent(kind, outcome string, elapsed time.Duration)
}

// Delivery and event outcomes reported to an Observer.
const (
	OutcomeAccepted   = "accepted"
	OutcomeUnknownBot = "unknown_bot"
	OutcomeNonObject  = "non_object"
	OutcomeParseError = "parse_error"
	OutcomeHandled    = "handled"
	OutcomeFailed     = "failed"
	OutcomePanicked   = "panicked"
)

type nopObserver struct{}

func (nopObserver) ObserveDelivery(string)                     {}
func (nopObserver) ObserveEvent(string, string, time.Duration) {}

// Dispatcher turns webhook deliveries into events and hands each one to a
// tracked task that enriches it and calls the handler.
type Dispatcher struct {
	logger   *slog.Logger
	registry *EventTypeRegistry
	bots     *BotTable
	handler  EventHandler
	tasks    *TaskSet
	observer Observer
}

// NewDispatcher creates a dispatcher. A nil handler only runs enrichment.
func NewDispatcher(log *slog.Logger, registry *EventTypeRegistry, bots *BotTable, handler EventHandler) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	if registry == nil {
		registry = NewDefaultEventTypeRegistry(log)
	}
	if bots == nil {
		bots = NewBotTable()
	}
	return &Dispatcher{
		logger:   log.With(slog.String("component", "yunhu_dispatcher")),
		registry: registry,
		bots:     bots,
		handler:  handler,
		tasks:    NewTaskSet(),
		observer: nopObserver{},
	}
}

// SetObserver installs o. It must be called before deliveries arrive.
func (d *Dispatcher) SetObserver(o Observer) {
	if o == nil {
		o = nopObserver{}
	}
	d.observer = o
}

// HandleWebhook accepts one delivery for appID and returns the HTTP status
// to answer with. An unknown appID is an *UnknownBotError. A body that is
// not a JSON object yields 500. Everything else is acknowledged with 200,
// including payloads that do not decode into an event, and handling
// continues in the background.
func (d *Dispatcher) HandleWebhook(ctx context.Context, appID string, body []byte) (int, error) {
	bot, ok := d.bots.Get(appID)
	if !ok {
		d.observer.ObserveDelivery(OutcomeUnknownBot)
		return http.StatusNotFound, &UnknownBotError{AppID: appID}
	}
	var object map[string]json.RawMessage
	if err := json.Unmarshal(body, &object); err != nil || object == nil {
		d.logger.Warn("received non-object webhook body", slog.String("app_id", appID))
		d.observer.ObserveDelivery(OutcomeNonObject)
		return http.StatusInternalServerError, nil
	}
	d.logger.Debug("received webhook", slog.String("app_id", appID), slog.Int("bytes", len(body)))

	ev, err := d.registry.ParseEvent(body)
	if err != nil {
		d.logger.Error("failed to parse event", slog.String("app_id", appID), slog.Any("error", err))
		d.observer.ObserveDelivery(OutcomeParseError)
		return http.StatusOK, nil
	}
	d.observer.ObserveDelivery(OutcomeAccepted)
	taskCtx := context.WithoutCancel(ctx)
	d.tasks.Go(func() { d.run(taskCtx, bot, ev) })
	return http.StatusOK, nil
}

func (d *Dispatcher) run(ctx context.Context, bot *Bot, ev Event) {
	start := time.Now()
	outcome := OutcomeHandled
	defer func() {
		if r := recover(); r != nil {
			outcome = OutcomePanicked
			d.logger.Error("event handler panicked",
				slog.String("event_id", ev.EventHeader().EventID),
				slog.Any("panic", r),
			)
		}
		d.observer.ObserveEvent(ev.Type(), outcome, time.Since(start))
	}()
	bot.Enrich(ctx, ev)
	if d.handler == nil {
		return
	}
	if err := d.handler.HandleEvent(ctx, bot, ev); err != nil {
		outcome = OutcomeFailed
		d.logger.Error("event handler failed",
			slog.String("event_id", ev.EventHeader().EventID),
			slog.String("event", ev.Name()),
			slog.Any("error", err),
		)
	}
}

// InFlight returns the number of events still being handled.
func (d *Dispatcher) InFlight() int {
	return d.tasks.Len()
}

// Drain waits for in-flight events until ctx is done.
func (d *Dispatcher) Drain(ctx context.Context) error {
	if err := d.tasks.Wait(ctx); err != nil {
		return fmt.Errorf("drain yunhu tasks: %w", err)
	}
	return nil
}

// Bots returns the bot table the dispatcher routes to.
func (d *Dispatcher) Bots() *BotTable {
	return d.bots
}
