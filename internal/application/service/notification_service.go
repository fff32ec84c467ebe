package service

import (
	"context"
	"fmt"
	"time"

	"github.com/garyjia/cost-approval/internal/application/dispatcher"
	"github.com/garyjia/cost-approval/internal/application/port"
	"github.com/garyjia/cost-approval/internal/domain/entity"
	"github.com/garyjia/cost-approval/internal/domain/event"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

const deadlineLayout = "2006-01-02 15:04 MST"

// NotificationService tells people about workflow changes that concern them.
// Delivery failures are logged and never undo the change itself.
type NotificationService interface {
	// Register subscribes the service to workflow events
	Register(d dispatcher.Dispatcher)

	// NotifyAssigned tells the responsible user that a record awaits them
	NotifyAssigned(ctx context.Context, approvalID int64) error

	// NotifyDelegated tells the delegate that a record was handed to them
	NotifyDelegated(ctx context.Context, approvalID int64) error

	// NotifyCompleted tells the submitter how the review ended
	NotifyCompleted(ctx context.Context, costTableID int64) error

	// SendReminder reminds the responsible user of an approaching deadline
	SendReminder(ctx context.Context, approvalID int64) error
}

type notificationServiceImpl struct {
	costTables port.CostTableRepository
	approvals  port.ApprovalRepository
	users      port.UserRepository
	sender     port.MessageSender
	clock      port.Clock
	logger     Logger
}

// NewNotificationService creates a new NotificationService
func NewNotificationService(
	costTables port.CostTableRepository,
	approvals port.ApprovalRepository,
	users port.UserRepository,
	sender port.MessageSender,
	clock port.Clock,
	logger Logger,
) NotificationService {
	if clock == nil {
		clock = port.SystemClock{}
	}
	return &notificationServiceImpl{
		costTables: costTables,
		approvals:  approvals,
		users:      users,
		sender:     sender,
		clock:      clock,
		logger:     logger,
	}
}

// Register subscribes the service to workflow events
func (s *notificationServiceImpl) Register(d dispatcher.Dispatcher) {
	d.SubscribeNamed(event.TypeWorkflowStarted, "notify-first-approver", s.onActivated)
	d.SubscribeNamed(event.TypeApprovalApproved, "notify-next-approver", s.onActivated)
	d.SubscribeNamed(event.TypeApprovalDelegated, "notify-delegate", func(ctx context.Context, evt *event.Event) error {
		return s.NotifyDelegated(ctx, evt.ApprovalID)
	})
	d.SubscribeNamed(event.TypeCostTableCompleted, "notify-submitter", func(ctx context.Context, evt *event.Event) error {
		return s.NotifyCompleted(ctx, evt.CostTableID)
	})
	d.SubscribeNamed(event.TypeReminderDue, "send-reminder", func(ctx context.Context, evt *event.Event) error {
		return s.SendReminder(ctx, evt.ApprovalID)
	})
}

// onActivated notifies the owner of the record a decision just activated
func (s *notificationServiceImpl) onActivated(ctx context.Context, evt *event.Event) error {
	id, ok := payloadID(evt.Payload, event.KeyActivatedID)
	if !ok {
		return nil
	}
	return s.NotifyAssigned(ctx, id)
}

// NotifyAssigned tells the responsible user that a record awaits them
func (s *notificationServiceImpl) NotifyAssigned(ctx context.Context, approvalID int64) error {
	a, ct, err := s.load(ctx, approvalID)
	if err != nil {
		return err
	}

	message := fmt.Sprintf(
		"Cost table #%d (%s, %s %s per month) is waiting for your review as %s.\nDeadline: %s",
		ct.ID, ct.Category, ct.MonthlyImpact.StringFixed(2), ct.Currency,
		a.ApprovalType.DisplayName(), a.Deadline.Format(deadlineLayout),
	)
	return s.send(ctx, a.ResponsibleUserID(), message, "approval_id", approvalID)
}

// NotifyDelegated tells the delegate that a record was handed to them
func (s *notificationServiceImpl) NotifyDelegated(ctx context.Context, approvalID int64) error {
	a, ct, err := s.load(ctx, approvalID)
	if err != nil {
		return err
	}
	if a.DelegatedTo == nil {
		return nil
	}

	message := fmt.Sprintf(
		"The %s review of cost table #%d was delegated to you.\nReason: %s\nDeadline: %s",
		a.ApprovalType.DisplayName(), ct.ID, a.DelegationReason, a.Deadline.Format(deadlineLayout),
	)
	return s.send(ctx, *a.DelegatedTo, message, "approval_id", approvalID)
}

// NotifyCompleted tells the submitter how the review ended
func (s *notificationServiceImpl) NotifyCompleted(ctx context.Context, costTableID int64) error {
	ct, err := s.costTables.GetByID(ctx, costTableID)
	if err != nil {
		return fmt.Errorf("get cost table: %w", err)
	}
	if ct == nil {
		return fmt.Errorf("cost table %d not found", costTableID)
	}

	var message string
	switch ct.Status {
	case entity.CostTableApproved:
		message = fmt.Sprintf("Cost table #%d (%s) has been approved.", ct.ID, ct.Category)
	case entity.CostTableRejected:
		message = fmt.Sprintf("Cost table #%d (%s) was rejected.\nReason: %s", ct.ID, ct.Category, ct.RejectionReason)
	case entity.CostTableExpired:
		message = fmt.Sprintf("The review of cost table #%d (%s) expired without a decision.", ct.ID, ct.Category)
	default:
		return nil
	}
	return s.send(ctx, ct.SubmittedBy, message, "cost_table_id", costTableID)
}

// SendReminder reminds the responsible user of an approaching deadline
func (s *notificationServiceImpl) SendReminder(ctx context.Context, approvalID int64) error {
	a, ct, err := s.load(ctx, approvalID)
	if err != nil {
		return err
	}
	if !a.Status.IsActionable() {
		s.logger.Info("Approval no longer open, reminder skipped", "approval_id", approvalID, "status", a.Status)
		return nil
	}

	left := a.Deadline.Sub(s.clock.Now()).Round(time.Hour)
	message := fmt.Sprintf(
		"Reminder: your %s review of cost table #%d is due in %s (deadline %s).",
		a.ApprovalType.DisplayName(), ct.ID, left, a.Deadline.Format(deadlineLayout),
	)
	return s.send(ctx, a.ResponsibleUserID(), message, "approval_id", approvalID)
}

func (s *notificationServiceImpl) load(ctx context.Context, approvalID int64) (*entity.Approval, *entity.CostTable, error) {
	a, err := s.approvals.GetByID(ctx, approvalID)
	if err != nil {
		return nil, nil, fmt.Errorf("get approval: %w", err)
	}
	if a == nil {
		return nil, nil, fmt.Errorf("approval %d not found", approvalID)
	}

	ct, err := s.costTables.GetByID(ctx, a.CostTableID)
	if err != nil {
		return nil, nil, fmt.Errorf("get cost table: %w", err)
	}
	if ct == nil {
		return nil, nil, fmt.Errorf("cost table %d not found", a.CostTableID)
	}
	return a, ct, nil
}

// send delivers message to userID. Users without a Lark identity are skipped.
func (s *notificationServiceImpl) send(ctx context.Context, userID int64, message string, keysAndValues ...interface{}) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}
	if user == nil || user.LarkOpenID == "" {
		s.logger.Info("Recipient has no Lark identity, notification skipped",
			append([]interface{}{"user_id", userID}, keysAndValues...)...)
		return nil
	}

	if err := s.sender.SendMessage(ctx, user.LarkOpenID, message); err != nil {
		s.logger.Error("Failed to send notification",
			append([]interface{}{"error", err, "user_id", userID}, keysAndValues...)...)
		return fmt.Errorf("send message: %w", err)
	}

	s.logger.Info("Notification sent",
		append([]interface{}{"user_id", userID, "message_length", len(message)}, keysAndValues...)...)
	return nil
}

// payloadID reads an id stored in an event payload
func payloadID(payload map[string]interface{}, key string) (int64, bool) {
	switch v := payload[key].(type) {
	case int64:
		return v, v != 0
	case int:
		return int64(v), v != 0
	case float64:
		return int64(v), v != 0
	}
	return 0, false
}
