// internal/actions/logging.go
package actions

import (
	"context"
	"fmt"
	"time"

	"lead-automation/internal/common/logger"
)

// LogEmailSender records emails instead of delivering them. It is used when
// no email provider is configured.
type LogEmailSender struct {
	logger logger.Logger
}

func NewLogEmailSender(log logger.Logger) *LogEmailSender {
	return &LogEmailSender{logger: log}
}

func (l *LogEmailSender) SendEmail(_ context.Context, msg EmailMessage) (string, error) {
	id := fmt.Sprintf("log-%d", time.Now().UnixNano())
	l.logger.Info("Email delivery disabled, message logged", map[string]interface{}{
		"to":        msg.To,
		"subject":   msg.Subject,
		"template":  msg.TemplateID,
		"messageId": id,
	})
	return id, nil
}

type LogTaskCreator struct {
	logger logger.Logger
}

func NewLogTaskCreator(log logger.Logger) *LogTaskCreator {
	return &LogTaskCreator{logger: log}
}

func (l *LogTaskCreator) CreateTask(_ context.Context, task Task) (string, error) {
	id := fmt.Sprintf("task-%d", time.Now().UnixNano())
	l.logger.Info("CRM disabled, task logged", map[string]interface{}{
		"title":    task.Title,
		"assignee": task.Assignee,
		"leadId":   task.LeadID,
		"taskId":   id,
	})
	return id, nil
}

type LogAssignmentNotifier struct {
	logger logger.Logger
}

func NewLogAssignmentNotifier(log logger.Logger) *LogAssignmentNotifier {
	return &LogAssignmentNotifier{logger: log}
}

func (l *LogAssignmentNotifier) NotifyAssignment(_ context.Context, a Assignment) error {
	l.logger.Info("Lead assigned", map[string]interface{}{
		"leadId":   a.LeadID,
		"assignee": a.Assignee,
	})
	return nil
}
