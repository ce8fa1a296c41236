package config

import (
	"github.com/nspcc-dev/eventbridge/pkg/core/storage"
)

// DefaultMempoolCapacity is the default number of unconfirmed transactions
// kept by the node.
const DefaultMempoolCapacity = 50000

// ApplicationConfiguration config specific to the node.
type ApplicationConfiguration struct {
	LogLevel        string                  `yaml:"LogLevel" validate:"omitempty,oneof=debug info warn error dpanic panic fatal"`
	LogPath         string                  `yaml:"LogPath"`
	DBConfiguration storage.DBConfiguration `yaml:"DBConfiguration"`
	MempoolCapacity int                     `yaml:"MempoolCapacity" validate:"gte=0"`
	Notifier        Notifier                `yaml:"Notifier"`
	Pprof           BasicService            `yaml:"Pprof"`
	Prometheus      BasicService            `yaml:"Prometheus"`
	RPC             RPC                     `yaml:"RPC"`
	// Seeds are peers known to the node at startup.
	Seeds []string `yaml:"Seeds" validate:"dive,hostname_port"`
}
