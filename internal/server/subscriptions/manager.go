package subscriptions

import (
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/draftnotes/notegraph/internal/server/events"
	"github.com/draftnotes/notegraph/internal/server/graph"
)

// Manager holds the subscription registry and fans mutation events out to
// matching webhooks and attached live streams. The registry is in-memory;
// subscriptions do not survive a restart.
type Manager struct {
	mu            sync.RWMutex
	subscriptions map[string]*Subscription
	streams       map[int64]chan events.Event
	nextStreamID  int64

	eventChan chan events.Event
	notifier  *Notifier
	logger    *log.Logger
	done      chan struct{}
	wg        sync.WaitGroup
}

// NewManager creates a new subscription manager
func NewManager(logger *log.Logger) *Manager {
	return &Manager{
		subscriptions: make(map[string]*Subscription),
		streams:       make(map[int64]chan events.Event),
		eventChan:     make(chan events.Event, 1000),
		notifier:      NewNotifier(logger),
		logger:        logger,
		done:          make(chan struct{}),
	}
}

// Start begins processing events
func (m *Manager) Start() {
	m.wg.Add(1)
	go m.processEvents()
}

// Stop shuts down event processing and closes all live streams.
func (m *Manager) Stop() {
	close(m.done)
	m.wg.Wait()

	m.mu.Lock()
	for id, ch := range m.streams {
		close(ch)
		delete(m.streams, id)
	}
	m.mu.Unlock()
}

// EmitEvent queues an event for processing. Never blocks; events are
// dropped when the queue is full.
func (m *Manager) EmitEvent(event events.Event) {
	select {
	case m.eventChan <- event:
	default:
		m.logger.Warn("event queue full, dropping event", "id", event.ID, "type", event.Type)
	}
}

// Register adds a new subscription
func (m *Manager) Register(req *CreateSubscriptionRequest) (*Subscription, error) {
	if req.Name == "" {
		return nil, fmt.Errorf("%w: subscription name is required", graph.ErrInvalidInput)
	}
	if req.Webhook == "" {
		return nil, fmt.Errorf("%w: subscription webhook is required", graph.ErrInvalidInput)
	}

	now := time.Now()
	sub := &Subscription{
		ID:          uuid.New().String(),
		Name:        req.Name,
		Description: req.Description,
		Pattern:     req.Pattern,
		Webhook:     req.Webhook,
		Enabled:     true,
		Created:     now,
		Modified:    now,
	}

	m.mu.Lock()
	m.subscriptions[sub.ID] = sub
	m.mu.Unlock()

	m.logger.Info("registered subscription", "id", sub.ID, "name", sub.Name)
	return sub, nil
}

// Unregister removes a subscription
func (m *Manager) Unregister(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.subscriptions[id]; !exists {
		return fmt.Errorf("%w: subscription %s", graph.ErrNotFound, id)
	}
	delete(m.subscriptions, id)
	return nil
}

// Update modifies an existing subscription
func (m *Manager) Update(id string, req *UpdateSubscriptionRequest) (*Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sub, exists := m.subscriptions[id]
	if !exists {
		return nil, fmt.Errorf("%w: subscription %s", graph.ErrNotFound, id)
	}

	if req.Name != nil {
		sub.Name = *req.Name
	}
	if req.Description != nil {
		sub.Description = *req.Description
	}
	if req.Pattern != nil {
		sub.Pattern = *req.Pattern
	}
	if req.Webhook != nil {
		sub.Webhook = *req.Webhook
	}
	if req.Enabled != nil {
		sub.Enabled = *req.Enabled
	}
	sub.Modified = time.Now()

	return sub, nil
}

// Get returns a subscription by ID
func (m *Manager) Get(id string) (*Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sub, exists := m.subscriptions[id]
	if !exists {
		return nil, fmt.Errorf("%w: subscription %s", graph.ErrNotFound, id)
	}
	return sub, nil
}

// List returns all subscriptions
func (m *Manager) List() []*Subscription {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*Subscription, 0, len(m.subscriptions))
	for _, sub := range m.subscriptions {
		result = append(result, sub)
	}
	return result
}

// AttachStream registers a live event stream and returns its channel plus
// a detach function. The channel closes on Stop.
func (m *Manager) AttachStream() (<-chan events.Event, func()) {
	ch := make(chan events.Event, 64)

	m.mu.Lock()
	m.nextStreamID++
	id := m.nextStreamID
	m.streams[id] = ch
	m.mu.Unlock()

	detach := func() {
		m.mu.Lock()
		if c, ok := m.streams[id]; ok {
			close(c)
			delete(m.streams, id)
		}
		m.mu.Unlock()
	}
	return ch, detach
}

func (m *Manager) processEvents() {
	defer m.wg.Done()

	for {
		select {
		case <-m.done:
			return
		case event := <-m.eventChan:
			m.handleEvent(event)
		}
	}
}

// handleEvent fans one event out to live streams and matching webhooks.
func (m *Manager) handleEvent(event events.Event) {
	m.mu.RLock()
	for _, ch := range m.streams {
		select {
		case ch <- event:
		default:
			// Slow stream consumers miss events rather than stall the loop.
		}
	}
	subs := make([]*Subscription, 0, len(m.subscriptions))
	for _, sub := range m.subscriptions {
		if sub.Enabled {
			subs = append(subs, sub)
		}
	}
	m.mu.RUnlock()

	for _, sub := range subs {
		if !Match(event, sub.Pattern) {
			continue
		}
		now := time.Now()
		notification := Notification{
			SubscriptionID:   sub.ID,
			SubscriptionName: sub.Name,
			Event:            event,
			MatchedAt:        now,
		}

		m.mu.Lock()
		if s, exists := m.subscriptions[sub.ID]; exists {
			s.LastFired = &now
			s.FireCount++
		}
		m.mu.Unlock()

		go m.notifier.SendWebhook(sub.Webhook, notification)
	}
}
