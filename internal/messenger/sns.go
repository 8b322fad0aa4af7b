package messenger

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/aws/smithy-go"
	"github.com/ignite/lead-dispatch/internal/pkg/logger"
	"github.com/ignite/lead-dispatch/internal/service/dispatch"
)

// SNSAPI is the subset of the SNS client used by SNS.
type SNSAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNS sends transactional SMS directly to a phone number through Amazon SNS.
type SNS struct {
	client   SNSAPI
	senderID string
}

// NewSNS creates an SNS sender. senderID is optional and only honored in
// countries that support alphanumeric sender IDs.
func NewSNS(client SNSAPI, senderID string) *SNS {
	return &SNS{client: client, senderID: senderID}
}

func (s *SNS) SendInstant(ctx context.Context, phone, message string, opts dispatch.SendOptions) error {
	attrs := map[string]types.MessageAttributeValue{
		"AWS.SNS.SMS.SMSType": {DataType: aws.String("String"), StringValue: aws.String("Transactional")},
	}
	if s.senderID != "" {
		attrs["AWS.SNS.SMS.SenderID"] = types.MessageAttributeValue{DataType: aws.String("String"), StringValue: aws.String(s.senderID)}
	}

	out, err := s.client.Publish(ctx, &sns.PublishInput{
		PhoneNumber:       aws.String(phone),
		Message:           aws.String(message),
		MessageAttributes: attrs,
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			return dispatch.NewChannelError(fmt.Sprintf("sns %s: %s", apiErr.ErrorCode(), apiErr.ErrorMessage()), err)
		}
		return transportError("sns", err)
	}

	logger.Debug("sns sms published", "phone", phone, "message_id", aws.ToString(out.MessageId), "row", opts.Ordinal)
	return nil
}
