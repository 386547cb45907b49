package kb

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/signalsfoundry/uvoxid/core"
	"github.com/signalsfoundry/uvoxid/model"
)

var (
	ErrObjectExists   = errors.New("kb: object already exists")
	ErrObjectNotFound = errors.New("kb: object not found")
)

// EventType indicates what kind of change happened in the KB.
type EventType int

const (
	EventObjectAdded EventType = iota
	EventObjectUpdated
	EventObjectRemoved
)

func (t EventType) String() string {
	switch t {
	case EventObjectAdded:
		return "added"
	case EventObjectUpdated:
		return "updated"
	case EventObjectRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Event is emitted to subscribers when something interesting happens.
// Previous, Delta and BucketChanged are only set for EventObjectUpdated.
type Event struct {
	Type          EventType
	Object        model.TrackedObject
	Previous      core.Address
	Delta         core.Delta
	BucketChanged bool
}

// KnowledgeBase is an in-memory, thread-safe store of tracked objects.
// Objects are bucketed by their snapped address so neighbours within the
// configured precision can be found without scanning.
type KnowledgeBase struct {
	mu sync.RWMutex

	precision int
	objects   map[string]model.TrackedObject
	keys      map[string]string              // id -> bucket key
	buckets   map[string]map[string]struct{} // bucket key -> ids

	subs    map[int]func(Event)
	nextSub int
}

// NewKnowledgeBase constructs an empty KB that buckets addresses at the
// given number of significant units.
func NewKnowledgeBase(precision int) (*KnowledgeBase, error) {
	if _, err := core.Truncate(core.Address{}, precision); err != nil {
		return nil, err
	}
	return &KnowledgeBase{
		precision: precision,
		objects:   make(map[string]model.TrackedObject),
		keys:      make(map[string]string),
		buckets:   make(map[string]map[string]struct{}),
		subs:      make(map[int]func(Event)),
	}, nil
}

// Precision returns the bucketing precision in significant units.
func (kb *KnowledgeBase) Precision() int { return kb.precision }

// AddObject adds a new object. It returns an error if the ID already exists.
func (kb *KnowledgeBase) AddObject(obj model.TrackedObject) error {
	if obj.ID == "" {
		return fmt.Errorf("kb: object ID is required")
	}
	kb.mu.Lock()
	if _, exists := kb.objects[obj.ID]; exists {
		kb.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrObjectExists, obj.ID)
	}
	kb.objects[obj.ID] = obj
	kb.placeLocked(obj.ID, obj.Position)
	subs := kb.subscribersLocked()
	kb.mu.Unlock()

	notify(subs, Event{Type: EventObjectAdded, Object: obj})
	return nil
}

// GetObject returns the object with the given ID.
func (kb *KnowledgeBase) GetObject(id string) (model.TrackedObject, bool) {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	obj, ok := kb.objects[id]
	return obj, ok
}

// ListObjects returns a snapshot of all objects ordered by ID.
func (kb *KnowledgeBase) ListObjects() []model.TrackedObject {
	kb.mu.RLock()
	defer kb.mu.RUnlock()

	res := make([]model.TrackedObject, 0, len(kb.objects))
	for _, obj := range kb.objects {
		res = append(res, obj)
	}
	sortByID(res)
	return res
}

// RemoveObject deletes the object with the given ID.
func (kb *KnowledgeBase) RemoveObject(id string) error {
	kb.mu.Lock()
	obj, ok := kb.objects[id]
	if !ok {
		kb.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrObjectNotFound, id)
	}
	delete(kb.objects, id)
	kb.unplaceLocked(id)
	subs := kb.subscribersLocked()
	kb.mu.Unlock()

	notify(subs, Event{Type: EventObjectRemoved, Object: obj})
	return nil
}

// UpdatePosition moves an object to pos and notifies subscribers with the
// displacement from its previous address. The new address must be in the
// same frame as the old one.
func (kb *KnowledgeBase) UpdatePosition(id string, pos core.Address) (Event, error) {
	kb.mu.Lock()
	obj, ok := kb.objects[id]
	if !ok {
		kb.mu.Unlock()
		return Event{}, fmt.Errorf("%w: %q", ErrObjectNotFound, id)
	}
	delta, err := pos.Sub(obj.Position)
	if err != nil {
		kb.mu.Unlock()
		return Event{}, fmt.Errorf("update %q: %w", id, err)
	}

	prev := obj.Position
	obj.Position = pos
	kb.objects[id] = obj

	oldKey := kb.keys[id]
	kb.unplaceLocked(id)
	newKey := kb.placeLocked(id, pos)

	event := Event{
		Type:          EventObjectUpdated,
		Object:        obj,
		Previous:      prev,
		Delta:         delta,
		BucketChanged: oldKey != newKey,
	}
	subs := kb.subscribersLocked()
	kb.mu.Unlock()

	// Notify subscribers outside the lock to avoid deadlocks.
	notify(subs, event)
	return event, nil
}

// Near returns the objects sharing addr's bucket, ordered by ID.
func (kb *KnowledgeBase) Near(addr core.Address) ([]model.TrackedObject, error) {
	key, err := core.Snap(addr, kb.precision)
	if err != nil {
		return nil, err
	}

	kb.mu.RLock()
	defer kb.mu.RUnlock()

	ids := kb.buckets[key]
	res := make([]model.TrackedObject, 0, len(ids))
	for id := range ids {
		res = append(res, kb.objects[id])
	}
	sortByID(res)
	return res, nil
}

// BucketKey returns the snap key the object is currently filed under.
func (kb *KnowledgeBase) BucketKey(id string) (string, bool) {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	key, ok := kb.keys[id]
	return key, ok
}

// Subscribe registers a callback for KB events. It returns an unsubscribe function.
func (kb *KnowledgeBase) Subscribe(fn func(Event)) (unsubscribe func()) {
	kb.mu.Lock()
	defer kb.mu.Unlock()
	id := kb.nextSub
	kb.nextSub++
	kb.subs[id] = fn

	return func() {
		kb.mu.Lock()
		defer kb.mu.Unlock()
		delete(kb.subs, id)
	}
}

// placeLocked files id under the bucket for pos. Precision was validated at
// construction so Snap cannot fail here.
func (kb *KnowledgeBase) placeLocked(id string, pos core.Address) string {
	key, _ := core.Snap(pos, kb.precision)
	bucket, ok := kb.buckets[key]
	if !ok {
		bucket = make(map[string]struct{})
		kb.buckets[key] = bucket
	}
	bucket[id] = struct{}{}
	kb.keys[id] = key
	return key
}

func (kb *KnowledgeBase) unplaceLocked(id string) {
	key, ok := kb.keys[id]
	if !ok {
		return
	}
	delete(kb.keys, id)
	if bucket, ok := kb.buckets[key]; ok {
		delete(bucket, id)
		if len(bucket) == 0 {
			delete(kb.buckets, key)
		}
	}
}

// subscribersLocked snapshots subscribers in registration order.
func (kb *KnowledgeBase) subscribersLocked() []func(Event) {
	ids := make([]int, 0, len(kb.subs))
	for id := range kb.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]func(Event), 0, len(ids))
	for _, id := range ids {
		out = append(out, kb.subs[id])
	}
	return out
}

func notify(subs []func(Event), ev Event) {
	for _, sub := range subs {
		sub(ev)
	}
}

func sortByID(objs []model.TrackedObject) {
	sort.Slice(objs, func(i, j int) bool { return objs[i].ID < objs[j].ID })
}
