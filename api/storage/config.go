package storage

import (
	"errors"
	"fmt"
	"strings"

	"slideConverter/api/config"
)

var ErrMisconfigured = errors.New("object storage is misconfigured")

const defaultHost = "storage.googleapis.com"

// ValidateConfig rejects settings that would otherwise surface later as
// broken object URLs.
func ValidateConfig(cfg config.StorageConfig) error {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return fmt.Errorf("%w: bucket is not set (STORAGE_BUCKET)", ErrMisconfigured)
	}
	if err := checkBareName("bucket", "STORAGE_BUCKET", cfg.Bucket, false); err != nil {
		return err
	}
	if cfg.Region != "" {
		if err := checkBareName("region", "STORAGE_REGION", cfg.Region, false); err != nil {
			return err
		}
	}
	if cfg.Endpoint != "" {
		if err := checkBareName("endpoint", "STORAGE_ENDPOINT", cfg.Endpoint, true); err != nil {
			return err
		}
	}
	return nil
}

func checkBareName(field, env, value string, allowPort bool) error {
	v := strings.ToLower(strings.TrimSpace(value))

	switch {
	case v == "http" || v == "https" || v == "http:" || v == "https:":
		return fmt.Errorf("%w: %s %q is a bare protocol, expected a name (%s)", ErrMisconfigured, field, value, env)
	case strings.Contains(v, "://"):
		return fmt.Errorf("%w: %s %q looks like a full URL, expected a bare name (%s)", ErrMisconfigured, field, value, env)
	case strings.HasSuffix(v, ".http") || strings.HasSuffix(v, ".https"):
		return fmt.Errorf("%w: %s %q has a dangling protocol suffix (%s)", ErrMisconfigured, field, value, env)
	case strings.ContainsAny(v, "/ \t"):
		return fmt.Errorf("%w: %s %q must not contain slashes or spaces (%s)", ErrMisconfigured, field, value, env)
	case !allowPort && strings.Contains(v, ":"):
		return fmt.Errorf("%w: %s %q must not contain a colon (%s)", ErrMisconfigured, field, value, env)
	}
	return nil
}

// Host returns the storage host: the explicit endpoint, else the regional
// endpoint, else the global one.
func Host(cfg config.StorageConfig) string {
	if cfg.Endpoint != "" {
		return strings.TrimSpace(cfg.Endpoint)
	}
	if cfg.Region != "" {
		return fmt.Sprintf("storage.%s.rep.googleapis.com", strings.TrimSpace(cfg.Region))
	}
	return defaultHost
}
