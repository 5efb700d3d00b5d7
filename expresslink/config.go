package expresslink

import (
	"log/slog"
	"time"
)

// Default timing. The settle delay and poll budget follow the module's
// recommended UART handling; the reset pulse and boot delay are the minimums
// from the module datasheet.
const (
	DefaultSettleDelay      = 100 * time.Millisecond
	DefaultPollInterval     = 10 * time.Millisecond
	DefaultMaxPolls         = 300
	DefaultResetHold        = time.Second
	DefaultBootDelay        = 2 * time.Second
	DefaultSelfTestAttempts = 5
)

// Hooks are invoked synchronously by the engine, in order, once it has
// released its lock. A hook may call back into the ExpressLink. Any of them
// may be nil.
type Hooks struct {
	// OnCommand runs after every Execute that wrote a command.
	OnCommand func(command string, resp Response, elapsed time.Duration)
	// OnSelfTest runs after every self-test attempt.
	OnSelfTest func(attempt int, ok bool)
	// OnEvent runs for every event record decoded by PollEvent.
	OnEvent func(ev Event)
	// OnStateChange runs on every channel state transition.
	OnStateChange func(from, to State)
}

// Config holds the settings used by New. Build one with NewConfigBuilder.
type Config struct {
	dialer Dialer
	logger *slog.Logger

	resetPin OutputPin
	wakePin  OutputPin
	eventPin InputPin

	settleDelay      time.Duration
	pollInterval     time.Duration
	maxPolls         int
	resetHold        time.Duration
	bootDelay        time.Duration
	selfTestAttempts int

	hooks Hooks
}

func (c *Config) validate() error {
	if c.dialer == nil {
		return ErrNoDialer
	}
	return nil
}

func (c *Config) setDefaults() {
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
	if c.settleDelay == 0 {
		c.settleDelay = DefaultSettleDelay
	}
	if c.pollInterval == 0 {
		c.pollInterval = DefaultPollInterval
	}
	if c.maxPolls == 0 {
		c.maxPolls = DefaultMaxPolls
	}
	if c.resetHold == 0 {
		c.resetHold = DefaultResetHold
	}
	if c.bootDelay == 0 {
		c.bootDelay = DefaultBootDelay
	}
	if c.selfTestAttempts == 0 {
		c.selfTestAttempts = DefaultSelfTestAttempts
	}
}

// ConfigBuilder assembles a Config.
type ConfigBuilder struct {
	config Config
}

func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{}
}

func (b *ConfigBuilder) WithDialer(d Dialer) *ConfigBuilder {
	b.config.dialer = d
	return b
}

func (b *ConfigBuilder) WithLogger(l *slog.Logger) *ConfigBuilder {
	b.config.logger = l
	return b
}

// WithResetPin wires the active-low RESET line. When set, New pulses it
// before the self-test and Reset pulses it before sending RESET.
func (b *ConfigBuilder) WithResetPin(p OutputPin) *ConfigBuilder {
	b.config.resetPin = p
	return b
}

// WithWakePin wires the active-low WAKE line.
func (b *ConfigBuilder) WithWakePin(p OutputPin) *ConfigBuilder {
	b.config.wakePin = p
	return b
}

// WithEventPin wires the EVENT line. When set, PollEvent only queries the
// module while the line is asserted.
func (b *ConfigBuilder) WithEventPin(p InputPin) *ConfigBuilder {
	b.config.eventPin = p
	return b
}

// WithSettleDelay sets the wait before the first read of a response. A
// negative value disables it.
func (b *ConfigBuilder) WithSettleDelay(d time.Duration) *ConfigBuilder {
	b.config.settleDelay = d
	return b
}

// WithPollInterval sets the wait after a read that returned no data. A
// negative value disables it.
func (b *ConfigBuilder) WithPollInterval(d time.Duration) *ConfigBuilder {
	b.config.pollInterval = d
	return b
}

// WithMaxPolls bounds the number of reads spent waiting for one line.
func (b *ConfigBuilder) WithMaxPolls(n int) *ConfigBuilder {
	b.config.maxPolls = n
	return b
}

// WithResetTiming sets how long RESET is held low and how long the module is
// given to boot afterwards. Negative values disable the respective wait.
func (b *ConfigBuilder) WithResetTiming(hold, boot time.Duration) *ConfigBuilder {
	b.config.resetHold = hold
	b.config.bootDelay = boot
	return b
}

func (b *ConfigBuilder) WithSelfTestAttempts(n int) *ConfigBuilder {
	b.config.selfTestAttempts = n
	return b
}

func (b *ConfigBuilder) WithHooks(h Hooks) *ConfigBuilder {
	b.config.hooks = h
	return b
}

// Build validates the configuration and fills in defaults.
func (b *ConfigBuilder) Build() (Config, error) {
	c := b.config
	if err := c.validate(); err != nil {
		return Config{}, err
	}
	c.setDefaults()
	return c, nil
}
