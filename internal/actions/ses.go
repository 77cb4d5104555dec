// internal/actions/ses.go
package actions

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	"lead-automation/internal/common/errors"
	"lead-automation/internal/common/logger"
)

// SESService is the subset of the SES client used for delivery.
type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type SESEmailSender struct {
	client      SESService
	defaultFrom string
	logger      logger.Logger
}

func NewSESEmailSender(client SESService, defaultFrom string, log logger.Logger) *SESEmailSender {
	return &SESEmailSender{client: client, defaultFrom: defaultFrom, logger: log}
}

func (s *SESEmailSender) SendEmail(ctx context.Context, msg EmailMessage) (string, error) {
	from := msg.From
	if from == "" {
		from = s.defaultFrom
	}

	body := &types.Body{}
	if msg.Body != "" {
		body.Text = &types.Content{Data: aws.String(msg.Body), Charset: aws.String("UTF-8")}
	}
	if msg.HTMLBody != "" {
		body.Html = &types.Content{Data: aws.String(msg.HTMLBody), Charset: aws.String("UTF-8")}
	}

	input := &ses.SendEmailInput{
		Source: aws.String(from),
		Destination: &types.Destination{
			ToAddresses: []string{msg.To},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String("UTF-8")},
			Body:    body,
		},
	}

	out, err := s.client.SendEmail(ctx, input)
	if err != nil {
		return "", errors.NewNotificationSendFailedError("email", err)
	}

	messageID := aws.ToString(out.MessageId)
	s.logger.Info("Email sent via SES", map[string]interface{}{
		"leadId":    msg.LeadID,
		"template":  msg.TemplateID,
		"messageId": messageID,
	})
	return messageID, nil
}
