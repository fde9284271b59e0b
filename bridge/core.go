package bridge

import (
	"context"

	"github.com/a2z-academy/course-backup/models"
)

// Service is the core surface the bridge drives: the lazy master list scan
// and the backup operation.
type Service interface {
	Courses(ctx context.Context) ([]models.Course, error)
	BackupSelected(ctx context.Context, ids []string) error
}

// Core runs the service side of the bridge: an initial scan followed by a
// single-consumer command loop.
type Core struct {
	bus *Bus
	svc Service
}

// NewCore wires a service to a bus.
func NewCore(bus *Bus, svc Service) *Core {
	return &Core{bus: bus, svc: svc}
}

// Run performs the initial course scan, emitting CoursesList or
// CoursesError, then serves BackupSelected commands until ctx is cancelled.
// Commands are handled one at a time; each is acknowledged asynchronously
// after its run completes. The event channel closes on return.
func (c *Core) Run(ctx context.Context) {
	defer c.bus.close()

	courses, err := c.svc.Courses(ctx)
	if err != nil {
		c.bus.Emit(CoursesError{Message: err.Error()})
	} else {
		c.bus.Emit(CoursesList{Courses: courses})
	}

	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-c.bus.commands:
			if err := c.svc.BackupSelected(ctx, cmd.IDs); err != nil {
				cmd.ack <- Ack{OK: false, Error: err.Error()}
				continue
			}
			cmd.ack <- Ack{OK: true}
		}
	}
}
