package coronet

// config is the shared option target for Reactor, Socket, and Server,
// following the teacher's functional-options pattern (options.go in
// go-eventloop): a private config struct is built up by applying Option
// values before construction proceeds.
type config struct {
	logger       *Logger
	acceptPolicy AcceptPolicy
}

// Option configures a Reactor, Socket, or Server at construction time.
type Option func(*config)

// WithLogger attaches a structured logger (see NewLogger) to a Reactor,
// Socket, or Server. Without this option, logging is disabled.
func WithLogger(l *Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// WithAcceptPolicy configures how Server.Accept treats a second accept
// failure observed right after a readiness wake (spec §9's Open Question
// over whether to diverge from the original's fatal-on-any-post-wake-
// failure policy). See AcceptPolicy.
func WithAcceptPolicy(policy AcceptPolicy) Option {
	return func(c *config) {
		c.acceptPolicy = policy
	}
}

func newConfig(options []Option) config {
	var c config
	for _, o := range options {
		o(&c)
	}
	if c.logger == nil {
		c.logger = disabledLogger()
	}
	return c
}
