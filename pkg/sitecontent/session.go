package sitecontent

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// EditSession holds the single document being edited. Every mutation builds a
// new document from a deep copy, so snapshots returned by Document stay valid
// after later edits.
type EditSession struct {
	mu  sync.RWMutex
	doc *Document
}

// NewEditSession creates an empty session
func NewEditSession() *EditSession {
	return &EditSession{}
}

// Load replaces the session state wholesale with a copy of doc
func (s *EditSession) Load(doc *Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if doc == nil {
		s.doc = nil
		return
	}
	s.doc = doc.Clone()
}

// Loaded reports whether a document has been loaded
func (s *EditSession) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc != nil
}

// Document returns the current snapshot. Callers must treat it as read-only.
func (s *EditSession) Document() (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.doc == nil {
		return nil, ErrNoDocument
	}
	return s.doc, nil
}

// Update replaces the value at the dotted path. On error the session keeps
// the previous document.
func (s *EditSession) Update(path string, value interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		return ErrNoDocument
	}
	next, err := s.doc.Set(path, value)
	if err != nil {
		return err
	}
	s.doc = next
	return nil
}

// Get returns a copy of the value at path
func (s *EditSession) Get(path string) (interface{}, error) {
	doc, err := s.Document()
	if err != nil {
		return nil, err
	}
	return doc.Get(path)
}

// Append adds item at the end of the list at path
func (s *EditSession) Append(path string, item interface{}) error {
	return s.editList(path, func(list []interface{}) ([]interface{}, error) {
		normalized, err := normalize(item)
		if err != nil {
			return nil, err
		}
		return append(list, normalized), nil
	})
}

// Remove deletes the list element at index
func (s *EditSession) Remove(path string, index int) error {
	return s.editList(path, func(list []interface{}) ([]interface{}, error) {
		if index < 0 || index >= len(list) {
			return nil, &PathError{Path: path, Segment: fmt.Sprint(index), Reason: fmt.Sprintf("index out of range [0,%d)", len(list))}
		}
		out := make([]interface{}, 0, len(list)-1)
		out = append(out, list[:index]...)
		return append(out, list[index+1:]...), nil
	})
}

// Move relocates the element at from so that it ends up at index to
func (s *EditSession) Move(path string, from, to int) error {
	return s.editList(path, func(list []interface{}) ([]interface{}, error) {
		for _, i := range []int{from, to} {
			if i < 0 || i >= len(list) {
				return nil, &PathError{Path: path, Segment: fmt.Sprint(i), Reason: fmt.Sprintf("index out of range [0,%d)", len(list))}
			}
		}
		item := list[from]
		out := make([]interface{}, 0, len(list))
		out = append(out, list[:from]...)
		out = append(out, list[from+1:]...)
		out = append(out[:to], append([]interface{}{item}, out[to:]...)...)
		return out, nil
	})
}

// editList reads the list at path and writes the whole replacement back
// through Update. The read and the write happen under one lock.
func (s *EditSession) editList(path string, fn func([]interface{}) ([]interface{}, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		return ErrNoDocument
	}
	v, err := s.doc.Get(path)
	if err != nil {
		return err
	}
	var list []interface{}
	switch node := v.(type) {
	case []interface{}:
		list = node
	case nil:
		// null lists are treated as empty
	default:
		segments := strings.Split(path, ".")
		return &PathError{Path: path, Segment: segments[len(segments)-1], Reason: "not a list, got " + kindOf(v)}
	}
	updated, err := fn(list)
	if err != nil {
		return err
	}
	next, err := s.doc.Set(path, updated)
	if err != nil {
		return err
	}
	s.doc = next
	return nil
}

// NewTechniqueSection returns an empty section with a fresh time-ordered id
func NewTechniqueSection() TechniqueSection {
	return TechniqueSection{
		ID:         "section-" + strings.ToLower(ulid.Make().String()),
		Images:     []GalleryItem{},
		Paragraphs: []LocalizedString{{}},
	}
}

// NewEvent returns an event dated today
func NewEvent(title, description LocalizedString) Event {
	return Event{
		Title:       title,
		Date:        time.Now().UTC().Format("2006-01-02"),
		Description: description,
	}
}
