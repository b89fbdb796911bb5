package provider

import (
	"strings"

	"go.uber.org/zap"

	"github.com/notifyhub/dispatch/internal/config"
	"github.com/notifyhub/dispatch/internal/domain"
)

// Registry maps provider identifiers to adapter instances. It is
// built once at startup from configuration and read-only afterwards,
// so lookups need no locking.
type Registry struct {
	providers map[domain.ProviderType]Provider
}

// NewRegistry builds the provider map from configuration. Channels
// without a configured real provider fall back to console/local
// adapters, so every valid ProviderType that the environment supports
// resolves to something that can "send".
func NewRegistry(cfg *config.Config, logger *zap.Logger) *Registry {
	providers := make(map[domain.ProviderType]Provider)

	switch strings.ToLower(cfg.SMTPProvider) {
	case "gmail":
		if cfg.GmailEmail != "" && cfg.GmailPassword != "" {
			providers[domain.ProviderGmail] = NewGmailProvider(cfg.GmailEmail, cfg.GmailPassword, cfg.ProviderTimeout)
			logger.Info("email provider configured", zap.String("provider", "gmail"))
		} else {
			logger.Warn("gmail selected but credentials missing")
		}
	case "outlook":
		if cfg.OutlookEmail != "" && cfg.OutlookPassword != "" {
			providers[domain.ProviderOutlook] = NewOutlookProvider(cfg.OutlookEmail, cfg.OutlookPassword, cfg.ProviderTimeout)
			logger.Info("email provider configured", zap.String("provider", "outlook"))
		} else {
			logger.Warn("outlook selected but credentials missing")
		}
	case "custom":
		if cfg.SMTPHost != "" && cfg.SMTPUsername != "" && cfg.SMTPPassword != "" {
			providers[domain.ProviderCustomSMTP] = NewSMTPProvider(
				cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword,
				cfg.SMTPFromEmail, cfg.SMTPUseTLS, cfg.ProviderTimeout,
			)
			logger.Info("email provider configured",
				zap.String("provider", "custom_smtp"), zap.String("host", cfg.SMTPHost))
		} else {
			logger.Warn("custom SMTP selected but credentials missing")
		}
	}

	switch strings.ToLower(cfg.SMSProvider) {
	case "textbelt":
		providers[domain.ProviderTextbelt] = NewTextbeltProvider(cfg.TextbeltAPIKey, cfg.ProviderTimeout)
		logger.Info("sms provider configured", zap.String("provider", "textbelt"))
	default:
		providers[domain.ProviderConsoleSMS] = NewConsoleSMSProvider()
		logger.Info("sms provider configured", zap.String("provider", "console_sms"))
	}

	if cfg.FCMServerKey != "" {
		providers[domain.ProviderFCM] = NewFCMProvider(cfg.FCMServerKey, cfg.ProviderTimeout)
		logger.Info("push provider configured", zap.String("provider", "fcm"))
	} else {
		logger.Info("FCM server key not set, push falls back to local provider")
	}

	// LOCAL always resolves, and absorbs any channel left unconfigured.
	providers[domain.ProviderLocal] = NewLocalProvider()
	if _, ok := providers[domain.ProviderConsoleSMS]; !ok {
		providers[domain.ProviderConsoleSMS] = NewConsoleSMSProvider()
	}

	return &Registry{providers: providers}
}

// NewRegistryWith builds a registry from an explicit adapter map.
// Used by tests to inject fakes.
func NewRegistryWith(providers map[domain.ProviderType]Provider) *Registry {
	return &Registry{providers: providers}
}

// Lookup resolves the adapter for a provider identifier.
// A miss means the provider is not configured in this deployment;
// the worker treats that as a non-retryable failure.
func (r *Registry) Lookup(p domain.ProviderType) (Provider, bool) {
	adapter, ok := r.providers[p]
	return adapter, ok
}
