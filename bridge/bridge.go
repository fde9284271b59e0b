// Package bridge defines the message contract between the scraping core and
// its two external collaborators: the presentation surface that selects
// courses and renders progress, and the download handler that persists the
// generated backup file.
package bridge

import (
	"context"
	"sync"

	"github.com/a2z-academy/course-backup/models"
)

// Event is a message emitted by the core.
type Event interface {
	event()
}

// CoursesList carries the scanned master course list.
type CoursesList struct {
	Courses []models.Course `json:"courses"`
}

// CoursesError reports a failed initial list scan. The presentation layer is
// left to render the error with no list.
type CoursesError struct {
	Message string `json:"message"`
}

// BackupProgress is a human-readable progress line for a backup run.
type BackupProgress struct {
	Text string `json:"text"`
}

// Download hands the serialized backup document to the download handler,
// which alone is responsible for persisting it. The core has no visibility
// into whether that succeeds.
type Download struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
}

func (CoursesList) event()    {}
func (CoursesError) event()   {}
func (BackupProgress) event() {}
func (Download) event()       {}

// Ack is the asynchronous acknowledgement of a command.
type Ack struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// BackupSelected requests a backup of the given course ids.
type BackupSelected struct {
	IDs []string `json:"ids"`
	ack chan Ack
}

// Bus carries commands into the core and events out of it. Events are
// delivered in emission order to a single subscriber.
type Bus struct {
	events   chan Event
	commands chan BackupSelected

	closeOnce sync.Once
}

// NewBus builds a bus with a modest event buffer.
func NewBus() *Bus {
	return &Bus{
		events:   make(chan Event, 64),
		commands: make(chan BackupSelected),
	}
}

// Events is the subscriber side of the event stream. The channel closes when
// the core stops.
func (b *Bus) Events() <-chan Event {
	return b.events
}

// Emit publishes an event to the subscriber.
func (b *Bus) Emit(e Event) {
	b.events <- e
}

// BackupSelected submits a backup command. The returned channel receives the
// acknowledgement once the run finishes (buffered, so the core never blocks
// on an absent reader).
func (b *Bus) BackupSelected(ctx context.Context, ids []string) (<-chan Ack, error) {
	cmd := BackupSelected{
		IDs: ids,
		ack: make(chan Ack, 1),
	}
	select {
	case b.commands <- cmd:
		return cmd.ack, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (b *Bus) close() {
	b.closeOnce.Do(func() {
		close(b.events)
	})
}
