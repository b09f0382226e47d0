package levelset

// Option configures a LevelSet.
type Option func(*options)

type options struct {
	timeStep float32
	passes   int
}

func defaults() options {
	return options{timeStep: 0.5, passes: 16}
}

// WithTimeStep sets the pseudo time step of each redistancing iteration.
// Values above 0.5 are not stable with the first-order upwind scheme.
func WithTimeStep(dt float32) Option {
	return func(o *options) {
		if dt > 0 {
			o.timeStep = dt
		}
	}
}

// WithExtrapolationPasses sets how many cells deep Extrapolate reaches
// into a solid.
func WithExtrapolationPasses(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.passes = n
		}
	}
}
