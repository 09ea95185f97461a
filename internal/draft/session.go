package draft

import (
	"context"
	"errors"
	"maps"
	"sync"

	"github.com/sitebuilder/internal/section"
)

// State is the lifecycle state of an editing session.
type State int

const (
	StateClean State = iota
	StateDirty
	StateSaving
)

func (s State) String() string {
	switch s {
	case StateClean:
		return "clean"
	case StateDirty:
		return "dirty"
	case StateSaving:
		return "saving"
	}
	return "unknown"
}

var (
	// ErrSaveInFlight is returned when Save or Exit is called while a save is running.
	ErrSaveInFlight = errors.New("a save is already in progress")
	// ErrUnsavedChanges is returned by Exit when edits would be lost.
	ErrUnsavedChanges = errors.New("session has unsaved changes")
)

// Content is the authorable body of a page as sent to the store.
type Content struct {
	Sections   []section.Section `json:"sections"`
	Properties map[string]any    `json:"properties"`
}

// Saver commits content for a page slug.
type Saver interface {
	Save(ctx context.Context, slug string, content Content) error
}

// SaverFunc adapts a function to Saver.
type SaverFunc func(ctx context.Context, slug string, content Content) error

// Save implements Saver.
func (f SaverFunc) Save(ctx context.Context, slug string, content Content) error {
	return f(ctx, slug, content)
}

// ChangeKind names the edit recorded in a Change.
type ChangeKind string

const (
	ChangeAdd      ChangeKind = "add"
	ChangeUpdate   ChangeKind = "update"
	ChangeRemove   ChangeKind = "remove"
	ChangeReorder  ChangeKind = "reorder"
	ChangeProperty ChangeKind = "property"
)

// Change is one pending edit since the last successful save.
type Change struct {
	Kind      ChangeKind
	SectionID string
	Patch     section.Patch
	From, To  int
	Key       string
	Value     any
}

// ExitChoice is the answer of an exit prompt.
type ExitChoice int

const (
	ExitStay ExitChoice = iota
	ExitSave
	ExitDiscard
)

// Session 在内存中聚合对一个页面的编辑，直到显式保存。
// 保存失败时保留所有未提交的修改，并通过 Err 暴露错误以便重试。
type Session struct {
	mu    sync.Mutex
	slug  string
	saver Saver

	committed Content
	current   Content
	pending   []Change
	revision  uint64
	state     State
	err       error
}

// NewSession starts a clean session from the last committed content of slug.
func NewSession(slug string, committed Content, saver Saver) *Session {
	normalized := normalize(committed)
	return &Session{
		slug:      slug,
		saver:     saver,
		committed: normalized,
		current:   Content{Sections: normalized.Sections, Properties: maps.Clone(normalized.Properties)},
	}
}

// Slug returns the page the session edits.
func (s *Session) Slug() string { return s.slug }

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the error of the last failed save, if the session is still dirty.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Sections returns the in-memory section list. Callers must treat it as read-only.
func (s *Session) Sections() []section.Section {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current.Sections
}

// Properties returns a copy of the in-memory page properties.
func (s *Session) Properties() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.current.Properties)
}

// Pending returns the edits recorded since the last successful save.
func (s *Session) Pending() []Change {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Change(nil), s.pending...)
}

// Add appends sec and returns the id it was stored under.
func (s *Session) Add(sec section.Section) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := section.Add(s.current.Sections, sec)
	id := next[len(next)-1].ID
	s.apply(next, Change{Kind: ChangeAdd, SectionID: id})
	return id
}

// Update merges patch into the section with id. It reports false when nothing
// changed, e.g. for an unknown id or an empty patch.
func (s *Session) Update(id string, patch section.Patch) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := section.Update(s.current.Sections, id, patch)
	if section.Same(next, s.current.Sections) {
		return false
	}
	s.apply(next, Change{Kind: ChangeUpdate, SectionID: id, Patch: patch})
	return true
}

// Remove drops the section with id.
func (s *Session) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := section.Remove(s.current.Sections, id)
	if section.Same(next, s.current.Sections) {
		return false
	}
	s.apply(next, Change{Kind: ChangeRemove, SectionID: id})
	return true
}

// Reorder moves the section at from to index to.
func (s *Session) Reorder(from, to int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := section.Reorder(s.current.Sections, from, to)
	if section.Same(next, s.current.Sections) {
		return false
	}
	s.apply(next, Change{Kind: ChangeReorder, From: from, To: to})
	return true
}

// SetProperty sets a page level property. A nil value deletes the key.
func (s *Session) SetProperty(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	props := maps.Clone(s.current.Properties)
	if value == nil {
		delete(props, key)
	} else {
		props[key] = value
	}
	s.current.Properties = props
	s.record(Change{Kind: ChangeProperty, Key: key, Value: value})
}

// Save commits the in-memory content. Saving a clean session is a no-op. A
// second Save while one is running returns ErrSaveInFlight. On failure the
// session returns to dirty with every edit intact.
func (s *Session) Save(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case StateSaving:
		s.mu.Unlock()
		return ErrSaveInFlight
	case StateClean:
		s.mu.Unlock()
		return nil
	}
	snapshot := Content{Sections: s.current.Sections, Properties: maps.Clone(s.current.Properties)}
	revision := s.revision
	flushed := len(s.pending)
	s.state = StateSaving
	s.err = nil
	s.mu.Unlock()

	err := s.saver.Save(ctx, s.slug, snapshot)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.state = StateDirty
		s.err = err
		return err
	}

	s.committed = snapshot
	s.pending = append([]Change(nil), s.pending[flushed:]...)
	if s.revision == revision {
		s.state = StateClean
	} else {
		s.state = StateDirty
	}
	return nil
}

// Discard drops all pending edits and returns to the last committed content.
func (s *Session) Discard() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateSaving {
		return ErrSaveInFlight
	}
	s.reset()
	return nil
}

// Exit asks whether the editor may be left. A clean session exits at once.
// For a dirty session decide picks between saving, discarding and staying;
// without decide the session refuses with ErrUnsavedChanges.
func (s *Session) Exit(ctx context.Context, decide func() ExitChoice) error {
	switch s.State() {
	case StateClean:
		return nil
	case StateSaving:
		return ErrSaveInFlight
	}
	if decide == nil {
		return ErrUnsavedChanges
	}

	switch decide() {
	case ExitSave:
		if err := s.Save(ctx); err != nil {
			return err
		}
		if s.State() != StateClean {
			return ErrUnsavedChanges
		}
		return nil
	case ExitDiscard:
		return s.Discard()
	}
	return ErrUnsavedChanges
}

func (s *Session) apply(next []section.Section, change Change) {
	s.current.Sections = next
	s.record(change)
}

func (s *Session) record(change Change) {
	s.pending = append(s.pending, change)
	s.revision++
	if s.state == StateClean {
		s.state = StateDirty
	}
}

func (s *Session) reset() {
	s.current = Content{Sections: s.committed.Sections, Properties: maps.Clone(s.committed.Properties)}
	s.pending = nil
	s.revision++
	s.state = StateClean
	s.err = nil
}

func normalize(c Content) Content {
	if c.Sections == nil {
		c.Sections = []section.Section{}
	}
	if c.Properties == nil {
		c.Properties = map[string]any{}
	}
	return c
}
