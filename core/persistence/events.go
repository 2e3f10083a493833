package persistence

import (
	"context"
	"sort"
	"sync"

	"github.com/asaidimu/go-events"
	"github.com/google/uuid"
)

// PersistenceEventType defines the possible event types for persistence operations.
type PersistenceEventType string

const (
	QueryStart              PersistenceEventType = "query:start"
	QuerySuccess            PersistenceEventType = "query:success"
	QueryFailed             PersistenceEventType = "query:failed"
	DocumentCreateStart     PersistenceEventType = "document:create:start"
	DocumentCreateSuccess   PersistenceEventType = "document:create:success"
	DocumentCreateFailed    PersistenceEventType = "document:create:failed"
	CollectionCreateStart   PersistenceEventType = "collection:create:start"
	CollectionCreateSuccess PersistenceEventType = "collection:create:success"
	CollectionCreateFailed  PersistenceEventType = "collection:create:failed"
	TransactionStart        PersistenceEventType = "transaction:start"
	TransactionSuccess      PersistenceEventType = "transaction:success"
	TransactionFailed       PersistenceEventType = "transaction:failed"
)

// Issue represents a validation or operational issue.
type Issue struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Path     string `json:"path,omitempty"`
	Severity string `json:"severity,omitempty"`
}

// PersistenceEvent represents events emitted during persistence operations.
type PersistenceEvent struct {
	Type       PersistenceEventType `json:"type"`
	Timestamp  int64                `json:"timestamp"` // Unix milliseconds.
	Operation  string               `json:"operation"`
	Collection *string              `json:"collection,omitempty"`
	Input      any                  `json:"input,omitempty"`
	Output     any                  `json:"output,omitempty"`
	Error      *string              `json:"error,omitempty"`
	Issues     []Issue              `json:"issues,omitempty"`
	Query      any                  `json:"query,omitempty"` // The compiled QueryDSL, when there is one.
	Duration   *int64               `json:"duration,omitempty"` // Milliseconds.
}

// EventCallbackFunction is invoked for every event a subscription matches.
type EventCallbackFunction func(ctx context.Context, event PersistenceEvent) error

// SubscriptionInfo describes a registered subscription.
type SubscriptionInfo struct {
	Id          string               `json:"id"`
	Event       PersistenceEventType `json:"event"`
	Label       *string              `json:"label,omitempty"`
	Description *string              `json:"description,omitempty"`
	Unsubscribe func()               `json:"-"`
}

// RegisterSubscriptionOptions defines options for registering a subscription.
type RegisterSubscriptionOptions struct {
	Event       PersistenceEventType `json:"event"`
	Label       *string              `json:"label,omitempty"`
	Description *string              `json:"description,omitempty"`
	Callback    EventCallbackFunction
}

// eventHub owns the event bus and the subscriptions registered on it. It is
// shared by a Persistence service, its repositories and its transactions.
type eventHub struct {
	bus           *events.TypedEventBus[PersistenceEvent]
	subscriptions map[string]*SubscriptionInfo
	mu            sync.RWMutex
}

func newEventHub() (*eventHub, error) {
	bus, err := events.NewTypedEventBus[PersistenceEvent](events.DefaultConfig())
	if err != nil {
		return nil, err
	}
	return &eventHub{
		bus:           bus,
		subscriptions: make(map[string]*SubscriptionInfo),
	}, nil
}

func (h *eventHub) emit(event PersistenceEvent) {
	if h != nil && h.bus != nil {
		h.bus.Emit(string(event.Type), event)
	}
}

func (h *eventHub) register(options RegisterSubscriptionOptions) string {
	h.mu.Lock()
	defer h.mu.Unlock()

	unsubscribe := h.bus.Subscribe(string(options.Event), options.Callback)
	id := uuid.New().String()
	h.subscriptions[id] = &SubscriptionInfo{
		Id:          id,
		Event:       options.Event,
		Label:       options.Label,
		Description: options.Description,
		Unsubscribe: unsubscribe,
	}
	return id
}

func (h *eventHub) unregister(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if info, ok := h.subscriptions[id]; ok {
		info.Unsubscribe()
		delete(h.subscriptions, id)
	}
}

// list returns the active subscriptions ordered by id.
func (h *eventHub) list() []SubscriptionInfo {
	h.mu.RLock()
	defer h.mu.RUnlock()

	subs := make([]SubscriptionInfo, 0, len(h.subscriptions))
	for _, sub := range h.subscriptions {
		subs = append(subs, *sub)
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].Id < subs[j].Id })
	return subs
}
