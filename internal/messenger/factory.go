package messenger

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/ignite/lead-dispatch/internal/config"
	"github.com/ignite/lead-dispatch/internal/service/dispatch"
)

// AWSLoader resolves the shared AWS configuration on demand.
type AWSLoader func(ctx context.Context) (aws.Config, error)

// New builds the Messenger selected by cfg.Provider.
func New(ctx context.Context, cfg config.ChannelConfig, loadAWS AWSLoader) (dispatch.Messenger, error) {
	switch cfg.Provider {
	case config.ChannelWhatsApp:
		return NewWhatsApp(cfg.WhatsAppToken, cfg.WhatsAppPhoneNumberID, cfg.WhatsAppBaseURL, cfg.Timeout(), cfg.HTTPRetries), nil
	case config.ChannelTwilio:
		return NewTwilio(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber, cfg.TwilioWhatsApp, cfg.TwilioBaseURL, cfg.Timeout(), cfg.HTTPRetries), nil
	case config.ChannelSNS:
		awsCfg, err := loadAWS(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", dispatch.ErrConfiguration, err)
		}
		return NewSNS(sns.NewFromConfig(awsCfg), cfg.SNSSenderID), nil
	case config.ChannelDryRun:
		return DryRun{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown channel %q", dispatch.ErrConfiguration, cfg.Provider)
	}
}
