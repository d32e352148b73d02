package controller

import (
	"github.com/octoreflex/thermite/internal/operator"
	"github.com/octoreflex/thermite/internal/payload"
)

// OperatorAdapter adapts a Controller to operator.EngineControl, so
// cmd/thermite can hand the operator socket server a running engine
// without internal/operator needing to import internal/controller
// (which would otherwise be the more natural direction and risks a
// cycle once controller starts depending on operator's request types).
type OperatorAdapter struct {
	c *Controller
}

// NewOperatorAdapter wraps c for use with operator.NewServer.
func NewOperatorAdapter(c *Controller) *OperatorAdapter {
	return &OperatorAdapter{c: c}
}

// Status implements operator.EngineControl.
func (a *OperatorAdapter) Status() operator.EngineStatus {
	s := a.c.Status()
	return operator.EngineStatus{
		Platform:   s.Platform,
		FunctionID: s.FunctionID,
		Threads:    s.Threads,
		Iterations: s.Iterations,
	}
}

// Switch implements operator.EngineControl.
func (a *OperatorAdapter) Switch(settings []payload.Setting) error {
	return a.c.Switch(settings)
}
