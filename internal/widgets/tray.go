package widgets

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxWidgets is how many widgets fit in the tray
const DefaultMaxWidgets = 4

// Widget is one tile in the tray. Content is opaque JSON rendered by the frontend
// according to Kind.
type Widget struct {
	ID        string          `json:"id"`
	Kind      string          `json:"kind"`
	Content   json.RawMessage `json:"content"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Snapshot is the tray contents at one version, oldest first
type Snapshot struct {
	Version uint64   `json:"version"`
	Widgets []Widget `json:"widgets"`
}

// Tray holds at most max widgets in insertion order
type Tray struct {
	mu      sync.RWMutex
	max     int
	items   []Widget
	version uint64
	now     func() time.Time
}

// NewTray creates an empty tray. max <= 0 uses DefaultMaxWidgets.
func NewTray(max int) *Tray {
	if max <= 0 {
		max = DefaultMaxWidgets
	}
	return &Tray{max: max, now: time.Now}
}

// Put adds or updates a widget and returns its id and whether the tray
// changed. An empty id gets a generated one. A widget whose content is
// unchanged stays where it is; a changed one is moved to the newest slot.
// When the tray is full the oldest widget is dropped.
func (t *Tray) Put(id, kind string, content any) (string, bool, error) {
	raw, err := encode(content)
	if err != nil {
		return "", false, fmt.Errorf("failed to encode widget content: %w", err)
	}
	if id == "" {
		id = uuid.NewString()
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if i := t.indexLocked(id); i >= 0 {
		existing := t.items[i]
		if existing.Kind == kind && bytes.Equal(existing.Content, raw) {
			return id, false, nil
		}
		t.items = append(t.items[:i], t.items[i+1:]...)
	}

	for len(t.items) >= t.max {
		t.items = t.items[1:]
	}
	t.items = append(t.items, Widget{ID: id, Kind: kind, Content: raw, UpdatedAt: t.now().UTC()})
	t.version++
	return id, true, nil
}

// Remove deletes a widget and reports whether it was present
func (t *Tray) Remove(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	i := t.indexLocked(id)
	if i < 0 {
		return false
	}
	t.items = append(t.items[:i], t.items[i+1:]...)
	t.version++
	return true
}

// Get returns one widget by id
func (t *Tray) Get(id string) (Widget, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if i := t.indexLocked(id); i >= 0 {
		return t.items[i], true
	}
	return Widget{}, false
}

// List returns a copy of the tray
func (t *Tray) List() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return Snapshot{
		Version: t.version,
		Widgets: append([]Widget{}, t.items...),
	}
}

// Len returns the number of widgets
func (t *Tray) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.items)
}

func (t *Tray) indexLocked(id string) int {
	for i, w := range t.items {
		if w.ID == id {
			return i
		}
	}
	return -1
}

// encode normalises content to compact JSON so equal content compares equal
func encode(content any) (json.RawMessage, error) {
	var raw []byte
	switch v := content.(type) {
	case json.RawMessage:
		raw = v
	case []byte:
		raw = v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		raw = b
	}
	if !json.Valid(raw) {
		return nil, fmt.Errorf("content is not valid JSON")
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
