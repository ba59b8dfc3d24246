package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks configuration consistency. It is called by Load after
// normalization; callers constructing configs directly should call it too.
func (c *Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.Paths.DataDir) == "" {
		problems = append(problems, "paths.data_dir is required")
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		problems = append(problems, "paths.log_dir is required")
	}

	if c.Queue.HourlyLimit <= 0 {
		problems = append(problems, "queue.hourly_limit must be positive")
	}
	if c.Dispatch.RateLimitSeconds < 0 {
		problems = append(problems, "dispatch.rate_limit_seconds must not be negative")
	}
	if c.Dispatch.MaxRetries < 1 {
		problems = append(problems, "dispatch.max_retries must be at least 1")
	}
	if c.Dispatch.BatchSize <= 0 {
		problems = append(problems, "dispatch.batch_size must be positive")
	}
	if c.Daemon.IntervalSeconds <= 0 {
		problems = append(problems, "daemon.interval_seconds must be positive")
	}
	if c.Supervisor.CheckIntervalSeconds <= 0 {
		problems = append(problems, "supervisor.check_interval_seconds must be positive")
	}
	if c.Supervisor.StopGraceSeconds < 0 {
		problems = append(problems, "supervisor.stop_grace_seconds must not be negative")
	}

	if err := validateHours(c.BusinessHours.StartHour, c.BusinessHours.EndHour); err != nil {
		problems = append(problems, fmt.Sprintf("business_hours: %v", err))
	}

	seen := make(map[string]struct{}, len(c.Accounts))
	for i, account := range c.Accounts {
		label := fmt.Sprintf("accounts[%d]", i)
		if account.ID == "" {
			problems = append(problems, label+": id is required")
			continue
		}
		if account.Platform == "" {
			problems = append(problems, label+": platform is required")
			continue
		}
		if _, ok := c.Platforms[account.Platform]; !ok {
			problems = append(problems, fmt.Sprintf("%s: platform %q is not configured", label, account.Platform))
		}
		key := account.Platform + "/" + account.ID
		if _, dup := seen[key]; dup {
			problems = append(problems, fmt.Sprintf("%s: duplicate account %q on platform %q", label, account.ID, account.Platform))
		}
		seen[key] = struct{}{}
		if account.DailyUploadLimit < 0 {
			problems = append(problems, label+": daily_upload_limit must not be negative")
		}
		if account.StartHour != 0 || account.EndHour != 0 {
			if err := validateHours(account.StartHour, account.EndHour); err != nil {
				problems = append(problems, fmt.Sprintf("%s: %v", label, err))
			}
		}
	}

	if len(problems) == 0 {
		return nil
	}
	return errors.New("invalid configuration: " + strings.Join(problems, "; "))
}

func validateHours(start, end int) error {
	if start < 0 || start > 23 {
		return fmt.Errorf("start_hour %d out of range 0..23", start)
	}
	if end < 1 || end > 24 {
		return fmt.Errorf("end_hour %d out of range 1..24", end)
	}
	if start >= end {
		return fmt.Errorf("start_hour %d must be before end_hour %d", start, end)
	}
	return nil
}
