package config

import (
	"fmt"
	"slices"
	"sort"
	"strings"
)

// Validate 检查配置，返回全部问题（按字母排序，分号连接）
func (c *Config) Validate() error {
	var problems []string
	check := func(ok bool, format string, args ...any) {
		if !ok {
			problems = append(problems, fmt.Sprintf(format, args...))
		}
	}

	srv := c.Server
	check(srv.HTTPPort > 0 && srv.HTTPPort <= 65535, "invalid HTTP port")
	check(srv.MetricsPort >= 0 && srv.MetricsPort <= 65535, "invalid metrics port")
	check(srv.MetricsPort == 0 || srv.MetricsPort != srv.HTTPPort, "metrics port must differ from HTTP port")

	check(c.Collaboration.MaxRounds > 0, "collaboration.max_rounds must be positive")
	check(c.Router.CallTimeout > 0, "router.call_timeout must be positive")
	check(!c.Router.Breaker.Enabled || c.Router.Breaker.Threshold > 0, "router.breaker.threshold must be positive")

	check(slices.Contains([]string{"memory", "file", "redis", "sql"}, c.Store.Type),
		"unsupported store type %q", c.Store.Type)
	if c.Store.Type == "sql" {
		check(slices.Contains([]string{"postgres", "mysql", "sqlite"}, c.Database.Driver),
			"unsupported database driver %q", c.Database.Driver)
	}

	check(slices.Contains([]string{"memory", "file", "redis"}, c.Credentials.Store),
		"unsupported credentials store %q", c.Credentials.Store)
	check(c.Credentials.Store != "file" || c.Credentials.FilePath != "",
		"credentials.file_path is required for file store")

	for name, rc := range c.Responders.ByName() {
		check(rc.Priority >= 0, "responders.%s.priority must not be negative", name)
	}
	check(c.Telemetry.SampleRate >= 0 && c.Telemetry.SampleRate <= 1,
		"telemetry.sample_rate must be between 0 and 1")

	if len(problems) == 0 {
		return nil
	}
	sort.Strings(problems)
	return fmt.Errorf("config validation errors: %s", strings.Join(problems, "; "))
}
