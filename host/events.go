package host

import (
	"context"
	"sync"

	"github.com/justapithecus/pixport/protocol"
	"github.com/justapithecus/pixport/scripts"
)

// EventListener receives host events. Listeners run on a dedicated
// goroutine in arrival order and may issue requests on the Host.
type EventListener func(ev *protocol.HostEvent)

// ListenerID identifies a registered listener.
type ListenerID uint64

type listener struct {
	id ListenerID
	fn EventListener
}

// subscription is one subscribe round-trip. done is closed once err is
// set.
type subscription struct {
	done chan struct{}
	err  error
}

func (s *subscription) settled() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

type eventRegistry struct {
	mu        sync.Mutex
	next      ListenerID
	listeners map[string][]listener
	// subscribed maps an event name to the round-trip that claimed it.
	// Failed round-trips are removed when they settle.
	subscribed map[string]*subscription
}

func (r *eventRegistry) init() {
	r.listeners = make(map[string][]listener)
	r.subscribed = make(map[string]*subscription)
}

// reset forgets host-side subscriptions. Listeners stay registered.
func (r *eventRegistry) reset() {
	r.mu.Lock()
	r.subscribed = make(map[string]*subscription)
	r.mu.Unlock()
}

func (r *eventRegistry) add(name string, fn EventListener) ListenerID {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	r.listeners[name] = append(r.listeners[name], listener{id: r.next, fn: fn})
	return r.next
}

func (r *eventRegistry) remove(id ListenerID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, ls := range r.listeners {
		for i, l := range ls {
			if l.id != id {
				continue
			}
			r.listeners[name] = append(ls[:i:i], ls[i+1:]...)
			if len(r.listeners[name]) == 0 {
				delete(r.listeners, name)
			}
			return true
		}
	}
	return false
}

// claim assigns the names nobody has claimed to a new subscription and
// returns them with it. Names claimed by a round-trip that has not
// settled yet come back in pending so the caller can wait for them.
func (r *eventRegistry) claim(names []string) (fresh []string, sub *subscription, pending []*subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := make(map[*subscription]bool)
	for _, n := range names {
		if s, ok := r.subscribed[n]; ok {
			if !s.settled() && !seen[s] {
				seen[s] = true
				pending = append(pending, s)
			}
			continue
		}
		if sub == nil {
			sub = &subscription{done: make(chan struct{})}
		}
		r.subscribed[n] = sub
		fresh = append(fresh, n)
	}
	return fresh, sub, pending
}

// settle records the outcome of sub. On failure its names are released
// so a later call can try again.
func (r *eventRegistry) settle(sub *subscription, names []string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		for _, n := range names {
			if r.subscribed[n] == sub {
				delete(r.subscribed, n)
			}
		}
	}
	sub.err = err
	close(sub.done)
}

func (r *eventRegistry) isSubscribed(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.subscribed[name]
	return ok && s.settled() && s.err == nil
}

func (r *eventRegistry) dispatch(ev *protocol.HostEvent) {
	r.mu.Lock()
	ls := append([]listener(nil), r.listeners[ev.Name]...)
	r.mu.Unlock()
	for _, l := range ls {
		l.fn(ev)
	}
}

// SubscribeToEvents asks the host to send the named events. Names that
// are already subscribed are not sent again; names another call is
// still subscribing are waited for. If the host rejects the
// subscription, none of the names sent in this call count as subscribed.
func (h *Host) SubscribeToEvents(ctx context.Context, names ...string) error {
	for {
		fresh, sub, pending := h.events.claim(names)
		if len(fresh) > 0 {
			if err := h.subscribe(ctx, sub, fresh); err != nil {
				return err
			}
		}
		retry, err := waitSubscriptions(ctx, pending)
		if err != nil || !retry {
			return err
		}
	}
}

func (h *Host) subscribe(ctx context.Context, sub *subscription, names []string) error {
	script, err := scripts.Build(scripts.NetworkEventSubscribe, map[string]any{"events": names})
	if err == nil {
		_, err = h.call(ctx, script, Expect{Result: true})
	}
	h.events.settle(sub, names, err)
	if err != nil {
		h.logger.Warn("event subscription failed", map[string]any{"events": names, "error": err.Error()})
		return err
	}
	h.logger.Debug("subscribed to events", map[string]any{"events": names})
	return nil
}

// waitSubscriptions blocks until every pending round-trip settles. It
// reports retry when one of them failed, leaving its names unclaimed.
func waitSubscriptions(ctx context.Context, pending []*subscription) (retry bool, err error) {
	for _, s := range pending {
		select {
		case <-s.done:
			if s.err != nil {
				retry = true
			}
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
	return retry, nil
}

// OnEvent registers fn for the named event and subscribes to it if
// needed. If the subscription fails, fn is unregistered again and the
// error returned; other listeners for the event are untouched.
func (h *Host) OnEvent(ctx context.Context, name string, fn EventListener) (ListenerID, error) {
	id := h.events.add(name, fn)
	if err := h.SubscribeToEvents(ctx, name); err != nil {
		h.events.remove(id)
		return 0, err
	}
	return id, nil
}

// RemoveEventListener unregisters a listener. The host-side subscription
// is kept. Returns false if id is unknown.
func (h *Host) RemoveEventListener(id ListenerID) bool {
	return h.events.remove(id)
}

// Subscribed reports whether the named event is subscribed on the
// current connection.
func (h *Host) Subscribed(name string) bool {
	return h.events.isSubscribed(name)
}
