// internal/actions/sns.go
package actions

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"

	"lead-automation/internal/common/errors"
	"lead-automation/internal/common/logger"
)

// SNSService is the subset of the SNS client used for notifications.
type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSAssignmentNotifier publishes assignments to a topic the sales team
// subscribes to.
type SNSAssignmentNotifier struct {
	client   SNSService
	topicARN string
	logger   logger.Logger
}

func NewSNSAssignmentNotifier(client SNSService, topicARN string, log logger.Logger) *SNSAssignmentNotifier {
	return &SNSAssignmentNotifier{client: client, topicARN: topicARN, logger: log}
}

func (n *SNSAssignmentNotifier) NotifyAssignment(ctx context.Context, a Assignment) error {
	payload, err := json.Marshal(a)
	if err != nil {
		return errors.NewNotificationSendFailedError("assignment", err)
	}

	out, err := n.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(n.topicARN),
		Subject:  aws.String(fmt.Sprintf("Lead %s assigned to %s", a.LeadEmail, a.Assignee)),
		Message:  aws.String(string(payload)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"assignee": {
				DataType:    aws.String("String"),
				StringValue: aws.String(a.Assignee),
			},
		},
	})
	if err != nil {
		return errors.NewNotificationSendFailedError("assignment", err)
	}

	n.logger.Info("Assignment published", map[string]interface{}{
		"leadId":    a.LeadID,
		"assignee":  a.Assignee,
		"messageId": aws.ToString(out.MessageId),
	})
	return nil
}
