package config

// Default values for configuration options not otherwise overridden by a
// TOML file or environment variable. Both roots have no sane default and
// must be supplied; leaving them empty is caught by Validate.
const (
	defaultQueueConcurrency = 1
	defaultQueueRetryCount  = 3
	defaultHashAlgo         = "blake3"
	defaultHashWorkers      = 4
	defaultListenAddr       = "127.0.0.1:8420"
)

// DefaultConfig returns a Config populated with all default values. Used
// both as the decode target for the TOML overlay (so unset keys keep their
// default) and as the base of the override chain.
func DefaultConfig() *Config {
	return &Config{
		QueueConcurrency: defaultQueueConcurrency,
		QueueRetryCount:  defaultQueueRetryCount,
		HashAlgo:         defaultHashAlgo,
		HashWorkers:      defaultHashWorkers,
		ListenAddr:       defaultListenAddr,
	}
}
