// Package toast defines the fire-and-forget user-message presenter. The
// state managers call it on success/failure but never depend on it: a nil or
// failing presenter must not break a mutating operation.
package toast

import "go.uber.org/zap"

// Presenter shows a transient user-visible message.
type Presenter interface {
	Success(message string)
	Error(message string)
}

// LogPresenter writes toasts to the application log. It is the default for
// headless use.
type LogPresenter struct {
	Logger *zap.Logger
}

func (p LogPresenter) Success(message string) {
	if p.Logger != nil {
		p.Logger.Info("toast", zap.String("kind", "success"), zap.String("message", message))
	}
}

func (p LogPresenter) Error(message string) {
	if p.Logger != nil {
		p.Logger.Warn("toast", zap.String("kind", "error"), zap.String("message", message))
	}
}

// Success calls p.Success when p is non-nil.
func Success(p Presenter, message string) {
	if p != nil {
		p.Success(message)
	}
}

// Error calls p.Error when p is non-nil.
func Error(p Presenter, message string) {
	if p != nil {
		p.Error(message)
	}
}
