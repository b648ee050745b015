package startup

import (
	"context"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
)

type Dependency interface {
	GetName() string
	DependsOn() []string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

type Status int

const (
	StatusPending Status = iota
	StatusStarted
	StatusStopped
	StatusFailed
)

// Func adapts a pair of functions to Dependency. Either function may be nil.
type Func struct {
	Name      string
	Requires  []string
	StartFunc func(ctx context.Context) error
	StopFunc  func(ctx context.Context) error
}

func (f Func) GetName() string     { return f.Name }
func (f Func) DependsOn() []string { return f.Requires }

func (f Func) Start(ctx context.Context) error {
	if f.StartFunc == nil {
		return nil
	}
	return f.StartFunc(ctx)
}

func (f Func) Stop(ctx context.Context) error {
	if f.StopFunc == nil {
		return nil
	}
	return f.StopFunc(ctx)
}

// Startup starts dependencies in registration order, after whatever they depend on,
// and retries the whole set with a Fibonacci backoff.
type Startup struct {
	order        []string
	dependencies map[string]Dependency
	statuses     map[string]Status
	logger       ectologger.Logger
	maxAttempts  int
	unit         time.Duration
}

func NewStartup(logger ectologger.Logger, maxAttempts int) *Startup {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	return &Startup{
		dependencies: make(map[string]Dependency),
		statuses:     make(map[string]Status),
		logger:       logger,
		maxAttempts:  maxAttempts,
		unit:         time.Second,
	}
}

func (s *Startup) AddDependency(dependency Dependency) {
	name := dependency.GetName()
	if _, ok := s.dependencies[name]; !ok {
		s.order = append(s.order, name)
	}
	s.dependencies[name] = dependency
}

func (s *Startup) Status(name string) Status {
	return s.statuses[name]
}

func (s *Startup) Start(ctx context.Context) error {
	var lastErr error
	a, b := 1, 1
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		s.logger.WithContext(ctx).WithField("attempt", attempt).Infof("Beginning startup attempt %d", attempt)

		lastErr = nil
		for _, name := range s.order {
			if err := s.startDependency(ctx, name, map[string]bool{}); err != nil {
				s.logger.WithContext(ctx).WithError(err).Errorf("Startup dependency '%s' attempt %d failed", name, attempt)
				lastErr = err
				break
			}
		}
		if lastErr == nil {
			return nil
		}
		if attempt == s.maxAttempts {
			break
		}

		s.logger.WithContext(ctx).Infof("Retrying in %d seconds (attempt %d/%d)", a, attempt, s.maxAttempts)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(a) * s.unit):
		}
		a, b = b, a+b
	}

	return fmt.Errorf("startup failed after %d attempts: %w", s.maxAttempts, lastErr)
}

func (s *Startup) startDependency(ctx context.Context, name string, visiting map[string]bool) error {
	if s.statuses[name] == StatusStarted {
		return nil
	}
	dependency, ok := s.dependencies[name]
	if !ok {
		return fmt.Errorf("unknown startup dependency '%s'", name)
	}
	if visiting[name] {
		return fmt.Errorf("startup dependency cycle at '%s'", name)
	}
	visiting[name] = true

	for _, required := range dependency.DependsOn() {
		if err := s.startDependency(ctx, required, visiting); err != nil {
			return err
		}
	}

	logger := s.logger.WithContext(ctx).WithField("dependency", name)
	logger.Infof("Starting dependency '%s'", name)
	s.statuses[name] = StatusPending
	if err := dependency.Start(ctx); err != nil {
		s.statuses[name] = StatusFailed
		logger.WithError(err).Errorf("Failed to start dependency '%s'", name)
		return err
	}
	s.statuses[name] = StatusStarted
	return nil
}

// Stop stops started dependencies in reverse registration order. Every dependency is
// attempted; the first error is returned.
func (s *Startup) Stop(ctx context.Context) error {
	var firstErr error
	for i := len(s.order) - 1; i >= 0; i-- {
		name := s.order[i]
		if s.statuses[name] != StatusStarted {
			continue
		}
		logger := s.logger.WithContext(ctx).WithField("dependency", name)
		logger.Infof("Stopping dependency '%s'", name)
		if err := s.dependencies[name].Stop(ctx); err != nil {
			logger.WithError(err).Errorf("Failed to stop dependency '%s'", name)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		s.statuses[name] = StatusStopped
	}
	return firstErr
}
