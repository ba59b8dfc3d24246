package uploader

import (
	"context"
	"log/slog"
	"time"

	"lister/internal/config"
)

// stub stands in for marketplaces without a real client yet. Every upload
// fails deterministically and non-retryably so items surface as failed
// instead of looping.
type stub struct {
	platform string
	cfg      *config.Config
	account  config.Account
}

func newStubFactory(platform string) Factory {
	return func(cfg *config.Config, account config.Account, _ *slog.Logger) (Uploader, error) {
		return &stub{platform: platform, cfg: cfg, account: account}, nil
	}
}

func (s *stub) Platform() string {
	return s.platform
}

func (s *stub) ValidateItem(*Request) error {
	return nil
}

func (s *stub) CheckDuplicate(context.Context, string, string) (bool, error) {
	return false, nil
}

func (s *stub) UploadItem(context.Context, *Request) (*Result, error) {
	return nil, &Error{
		Kind:    KindNotImplemented,
		Message: s.platform + " uploads are not implemented",
	}
}

func (s *stub) UploadImages(context.Context, string, []string) (*ImagesResult, error) {
	return nil, &Error{
		Kind:    KindNotImplemented,
		Message: s.platform + " uploads are not implemented",
	}
}

func (s *stub) BusinessHours() config.BusinessHours {
	return s.cfg.AccountBusinessHours(s.account)
}

func (s *stub) RateLimit() time.Duration {
	return time.Duration(s.cfg.Dispatch.RateLimitSeconds * float64(time.Second))
}
