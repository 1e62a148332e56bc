package run

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Kind distinguishes flow runs from task runs.
type Kind string

const (
	KindFlow Kind = "flow"
	KindTask Kind = "task"
)

// Identity describes a single run. Immutable once the run has entered the
// registry.
type Identity struct {
	// ID uniquely identifies the run.
	ID uuid.UUID
	// Name is the human-readable run name (e.g. "brisk-gazelle").
	Name string
	// Kind reports whether this is a flow or task run.
	Kind Kind
	// DefName is the name of the flow or task definition being executed.
	DefName string
	// ParentID links a nested run to its parent, uuid.Nil for top-level runs.
	ParentID uuid.UUID
}

var errIdentityID = errors.New("run identity requires an id")

func (id Identity) validate() error {
	if id.ID == uuid.Nil {
		return errIdentityID
	}
	if strings.TrimSpace(id.Name) == "" {
		return fmt.Errorf("run %s: identity requires a name", id.ID)
	}
	switch id.Kind {
	case KindFlow, KindTask:
	default:
		return fmt.Errorf("run %s: unknown kind %q", id.ID, id.Kind)
	}
	if id.Kind == KindTask && id.ParentID == uuid.Nil {
		return fmt.Errorf("task run %s: parent flow run is required", id.ID)
	}
	return nil
}

// IsTask reports whether the identity belongs to a task run.
func (id Identity) IsTask() bool { return id.Kind == KindTask }
