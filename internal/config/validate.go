package config

import (
	"errors"
	"fmt"
	"os"
)

// Validate checks all configuration values and returns every error found
// rather than stopping at the first, so a misconfigured deployment reports
// a complete list in one pass. The CLI reports a non-nil error here and
// exits with status 1, the same status it uses for every other error.
func Validate(cfg *Config) error {
	var errs []error

	errs = append(errs, validateRoot("local_root", cfg.LocalRoot)...)
	errs = append(errs, validateRoot("lake_root", cfg.LakeRoot)...)

	if cfg.HashAlgo != "blake3" {
		errs = append(errs, fmt.Errorf("hash_algo: %q is not supported, only \"blake3\"", cfg.HashAlgo))
	}

	if cfg.QueueConcurrency < 1 {
		errs = append(errs, fmt.Errorf("queue_concurrency: must be positive, got %d", cfg.QueueConcurrency))
	}

	if cfg.QueueRetryCount < 1 {
		errs = append(errs, fmt.Errorf("queue_retry_count: must be positive, got %d", cfg.QueueRetryCount))
	}

	if cfg.HashWorkers < 1 {
		errs = append(errs, fmt.Errorf("hash_workers: must be positive, got %d", cfg.HashWorkers))
	}

	return errors.Join(errs...)
}

func validateRoot(field, path string) []error {
	if path == "" {
		return []error{fmt.Errorf("%s: must be set", field)}
	}

	info, err := os.Stat(path)
	if err != nil {
		return []error{fmt.Errorf("%s: %w", field, err)}
	}

	if !info.IsDir() {
		return []error{fmt.Errorf("%s: %q is not a directory", field, path)}
	}

	return nil
}
