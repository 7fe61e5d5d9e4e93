package graph

import (
	"errors"
	"fmt"
	"strings"

	"github.com/terrane-dev/terrane/internal/model"
)

// Configuration error codes (E200-E299).
const (
	ErrCyclicDependency    = "E201" // reference relation contains a cycle
	ErrUnresolvedReference = "E202" // reference to an undeclared node
	ErrSelfReference       = "E203" // node references itself
	ErrOverBroadScope      = "E204" // project-wide grant for a resource-scopable role
	ErrUnknownRole         = "E205" // role outside the closed grant vocabulary
	ErrMissingAnchor       = "E206" // dependent kind without its anchor resource
	ErrAnchorKind          = "E207" // anchor attribute names a node of the wrong kind
)

// ConfigError is a configuration-time defect in the declared topology.
// Configuration errors are fatal to the whole run and are always raised
// before any remote call.
type ConfigError struct {
	Code    string
	NodeID  model.NodeID
	Message string

	// Nodes carries the involved node path for cycle errors.
	Nodes []model.NodeID
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if len(e.Nodes) > 0 {
		path := make([]string, len(e.Nodes))
		for i, id := range e.Nodes {
			path[i] = id.String()
		}
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, strings.Join(path, " -> "))
	}
	if e.NodeID != "" {
		return fmt.Sprintf("[%s] node %s: %s", e.Code, e.NodeID, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// IsConfigError reports whether err is (or wraps) a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// IsCycleError reports whether err is a cyclic-dependency ConfigError.
func IsCycleError(err error) bool {
	var ce *ConfigError
	if errors.As(err, &ce) {
		return ce.Code == ErrCyclicDependency
	}
	return false
}
