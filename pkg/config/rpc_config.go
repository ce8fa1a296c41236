package config

// Default RPC server limits.
const (
	DefaultMaxRequestBodyBytes   = 5 * 1024 * 1024
	DefaultMaxRequestHeaderBytes = 1024 * 1024
)

// RPC is an RPC service configuration information.
type RPC struct {
	BasicService          `yaml:",inline"`
	EnableCORSWorkaround  bool `yaml:"EnableCORSWorkaround"`
	MaxRequestBodyBytes   int  `yaml:"MaxRequestBodyBytes" validate:"gte=0"`
	MaxRequestHeaderBytes int  `yaml:"MaxRequestHeaderBytes" validate:"gte=0"`
}
