package config

import (
	"errors"
	"time"
)

// Notifier defaults.
const (
	DefaultWaitTimeout = 30 * time.Second
	DefaultMaxWait     = 60 * time.Second
	DefaultIdleTimeout = 5 * time.Minute
	DefaultMaxSessions = 32
	DefaultWorkers     = 4
	DefaultQueueSize   = 256
)

// Notifier is the configuration of long-poll event delivery.
type Notifier struct {
	// DefaultWaitTimeout is used for waits that don't specify a timeout.
	DefaultWaitTimeout time.Duration `yaml:"DefaultWaitTimeout" validate:"gte=0"`
	// MaxWaitTimeout caps the requested wait timeouts.
	MaxWaitTimeout time.Duration `yaml:"MaxWaitTimeout" validate:"gte=0"`
	// IdleTimeout is the time after which a session without any calls is
	// deactivated.
	IdleTimeout time.Duration `yaml:"IdleTimeout" validate:"gte=0"`
	// MaxSessions limits the number of concurrent sessions.
	MaxSessions int `yaml:"MaxSessions" validate:"gte=0"`
	// Workers is the number of goroutines completing suspended waits.
	Workers int `yaml:"Workers" validate:"gte=0,lte=1024"`
	// QueueSize is the capacity of the worker task queue.
	QueueSize int `yaml:"QueueSize" validate:"gte=0"`
}

// WithDefaults returns a copy of n with zero fields set to defaults.
func (n Notifier) WithDefaults() Notifier {
	if n.DefaultWaitTimeout == 0 {
		n.DefaultWaitTimeout = DefaultWaitTimeout
	}
	if n.MaxWaitTimeout == 0 {
		n.MaxWaitTimeout = DefaultMaxWait
	}
	if n.IdleTimeout == 0 {
		n.IdleTimeout = DefaultIdleTimeout
	}
	if n.MaxSessions == 0 {
		n.MaxSessions = DefaultMaxSessions
	}
	if n.Workers == 0 {
		n.Workers = DefaultWorkers
	}
	if n.QueueSize == 0 {
		n.QueueSize = DefaultQueueSize
	}
	return n
}

// Validate checks Notifier for internal consistency. Waits must end before
// their sessions can be considered idle.
func (n Notifier) Validate() error {
	if n.DefaultWaitTimeout > n.MaxWaitTimeout {
		return errors.New("DefaultWaitTimeout can't be bigger than MaxWaitTimeout")
	}
	if n.MaxWaitTimeout >= n.IdleTimeout {
		return errors.New("MaxWaitTimeout should be less than IdleTimeout")
	}
	return nil
}
