package linearsolver

// Option configures a Jacobi smoother or a Multigrid hierarchy.
type Option func(*options)

type options struct {
	iterations       int
	coarseIterations int
	relaxation       float32
	minSize          int
	preconditioner   int
}

func jacobiDefaults() options {
	return options{
		iterations:     2,
		relaxation:     1,
		preconditioner: 8,
	}
}

func multigridDefaults() options {
	return options{
		iterations:       2,
		coarseIterations: 16,
		relaxation:       2.0 / 3.0,
		minSize:          4,
		preconditioner:   8,
	}
}

// WithIterations sets the pre- and post-smoothing sweeps per level.
func WithIterations(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.iterations = n
		}
	}
}

// WithCoarseIterations sets the sweeps on the coarsest level.
func WithCoarseIterations(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.coarseIterations = n
		}
	}
}

// WithRelaxation sets the Jacobi relaxation factor w.
func WithRelaxation(w float32) Option {
	return func(o *options) {
		if w > 0 {
			o.relaxation = w
		}
	}
}

// WithMinSize sets the extent at or below which no coarser level is
// built.
func WithMinSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.minSize = n
		}
	}
}

// WithPreconditionerIterations sets the sweeps of RecordPreconditioner.
func WithPreconditionerIterations(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.preconditioner = n
		}
	}
}

func apply(o options, opts []Option) options {
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
