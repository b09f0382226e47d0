package vortex2d

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/KangWeon/Vortex2D/backend"
	"github.com/KangWeon/Vortex2D/compute"
	"github.com/KangWeon/Vortex2D/grid"
	"github.com/KangWeon/Vortex2D/internal/logging"
	"github.com/KangWeon/Vortex2D/levelset"
	"github.com/KangWeon/Vortex2D/linearsolver"
	"github.com/KangWeon/Vortex2D/reduce"

	// The CPU backend is always available.
	_ "github.com/KangWeon/Vortex2D/backend/cpu"
)

type releaser interface {
	Release()
}

type bufferRelease struct {
	device compute.Device
	buf    compute.Buffer
}

func (b bufferRelease) Release() { b.device.ReleaseBuffer(b.buf) }

// Session owns a device, its pipeline cache and every object created
// through it. Close releases all of them.
//
// Session methods are safe for concurrent use; the objects it returns
// are not.
type Session struct {
	mu sync.Mutex

	device     compute.Device
	ownsDevice bool
	cache      *compute.PipelineCache
	owned      []releaser
	closed     bool
}

// NewSession opens a device and a pipeline cache.
func NewSession(opts ...Option) (*Session, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger != nil {
		logging.Set(o.logger)
	}

	s := &Session{device: o.device}
	if s.device == nil {
		cfg := backend.Config{Workers: o.workers}
		var err error
		if o.backend != "" {
			s.device, err = backend.Open(o.backend, cfg)
		} else {
			s.device, err = backend.OpenDefault(cfg)
		}
		if err != nil {
			return nil, err
		}
		s.ownsDevice = true
	}
	s.cache = compute.NewPipelineCache(s.device, o.cacheCapacity)
	logging.Logger().Info("vortex2d: session opened", "device", s.device.Name())
	return s, nil
}

// Device returns the session's device.
func (s *Session) Device() compute.Device { return s.device }

// Cache returns the session's pipeline cache.
func (s *Session) Cache() *compute.PipelineCache { return s.cache }

func (s *Session) own(r releaser) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		r.Release()
		return ErrSessionClosed
	}
	s.owned = append(s.owned, r)
	return nil
}

func (s *Session) check() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	return nil
}

// NewBuffer allocates a zeroed buffer owned by the session.
func (s *Session) NewBuffer(label string, size compute.Size) (compute.Buffer, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	b, err := s.device.CreateBuffer(label, size)
	if err != nil {
		return nil, err
	}
	if err := s.own(bufferRelease{s.device, b}); err != nil {
		return nil, err
	}
	return b, nil
}

// NewField allocates a double-buffered field owned by the session.
func (s *Session) NewField(label string, size compute.Size) (*grid.Field, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	f, err := grid.NewField(s.device, label, size)
	if err != nil {
		return nil, err
	}
	if err := s.own(f); err != nil {
		return nil, err
	}
	return f, nil
}

// NewMultigrid builds a pressure solver hierarchy owned by the session.
func (s *Session) NewMultigrid(size compute.Size, opts ...linearsolver.Option) (*linearsolver.Multigrid, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	m, err := linearsolver.NewMultigrid(s.cache, size, opts...)
	if err != nil {
		return nil, err
	}
	if err := s.own(m); err != nil {
		return nil, err
	}
	return m, nil
}

// NewJacobi creates a Jacobi smoother owned by the session. It holds no
// buffers of its own.
func (s *Session) NewJacobi(size compute.Size, opts ...linearsolver.Option) (*linearsolver.Jacobi, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	j, err := linearsolver.NewJacobi(s.cache, size, opts...)
	if err != nil {
		return nil, err
	}
	if err := s.own(j); err != nil {
		return nil, err
	}
	return j, nil
}

// NewLevelSet creates a distance field owned by the session.
func (s *Session) NewLevelSet(size compute.Size, opts ...levelset.Option) (*levelset.LevelSet, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	l, err := levelset.New(s.cache, size, opts...)
	if err != nil {
		return nil, err
	}
	if err := s.own(l); err != nil {
		return nil, err
	}
	return l, nil
}

// NewSum creates a sum and dot product reducer owned by the session.
func (s *Session) NewSum(size compute.Size) (*reduce.Sum, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	r, err := reduce.NewSum(s.cache, size)
	if err != nil {
		return nil, err
	}
	if err := s.own(r); err != nil {
		return nil, err
	}
	return r, nil
}

// NewMax creates a max magnitude reducer owned by the session.
func (s *Session) NewMax(size compute.Size) (*reduce.Max, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	r, err := reduce.NewMax(s.cache, size)
	if err != nil {
		return nil, err
	}
	if err := s.own(r); err != nil {
		return nil, err
	}
	return r, nil
}

// Run records a command buffer with fn and submits it. Nothing is
// submitted when fn or the recording fails, and the fields fn flipped
// are flipped back.
func (s *Session) Run(ctx context.Context, fn func(cmd *compute.CommandBuffer) error) error {
	if err := s.check(); err != nil {
		return err
	}
	cmd := compute.NewCommandBuffer("session")
	if err := fn(cmd); err != nil {
		cmd.Discard()
		return err
	}
	if err := cmd.Err(); err != nil {
		cmd.Discard()
		return fmt.Errorf("recording: %w", err)
	}
	return s.device.Submit(ctx, cmd)
}

// Close releases every owned object in reverse creation order, then the
// pipelines and, if the session opened it, the device. Closing twice is
// a no-op.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	for _, r := range slices.Backward(s.owned) {
		r.Release()
	}
	s.owned = nil
	s.cache.Close()
	logging.Logger().Info("vortex2d: session closed")
	if s.ownsDevice {
		return s.device.Close()
	}
	return nil
}
