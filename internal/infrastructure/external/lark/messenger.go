package lark

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	larkIm "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"go.uber.org/zap"

	"github.com/garyjia/cost-approval/internal/application/port"
)

// messageCreator is the slice of the IM API the messenger uses
type messageCreator interface {
	Create(ctx context.Context, req *larkIm.CreateMessageReq, options ...larkcore.RequestOptionFunc) (*larkIm.CreateMessageResp, error)
}

// Messenger sends IM messages to users identified by open_id
type Messenger struct {
	messages messageCreator
	logger   *zap.Logger
}

// NewMessenger creates a Lark message sender
func NewMessenger(client *Client, logger *zap.Logger) *Messenger {
	return &Messenger{
		messages: client.GetClient().Im.Message,
		logger:   logger,
	}
}

// SendMessage sends a text message to a user
func (m *Messenger) SendMessage(ctx context.Context, openID string, content string) error {
	if openID == "" {
		return errors.New("openID cannot be empty")
	}
	if content == "" {
		return errors.New("content cannot be empty")
	}

	text, err := json.Marshal(map[string]string{"text": content})
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	req := larkIm.NewCreateMessageReqBuilder().
		ReceiveIdType("open_id").
		Body(larkIm.NewCreateMessageReqBodyBuilder().
			ReceiveId(openID).
			MsgType("text").
			Content(string(text)).
			Build()).
		Build()

	resp, err := m.messages.Create(ctx, req)
	if err != nil {
		m.logger.Error("Failed to send message",
			zap.String("open_id", openID),
			zap.Error(err))
		return fmt.Errorf("failed to send message: %w", err)
	}

	if !resp.Success() {
		m.logger.Error("API returned failure",
			zap.String("open_id", openID),
			zap.Int("code", resp.Code),
			zap.String("msg", resp.Msg))
		return fmt.Errorf("API error: code=%d, msg=%s", resp.Code, resp.Msg)
	}

	messageID := ""
	if resp.Data != nil && resp.Data.MessageId != nil {
		messageID = *resp.Data.MessageId
	}
	m.logger.Info("Message sent successfully",
		zap.String("message_id", messageID),
		zap.String("open_id", openID))

	return nil
}

// LogSender stands in for Lark when it is disabled and only logs messages
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender creates a sender that writes messages to the log
func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// SendMessage logs the message
func (s *LogSender) SendMessage(ctx context.Context, openID string, content string) error {
	s.logger.Info("Lark disabled, message not sent",
		zap.String("open_id", openID),
		zap.String("content", content))
	return nil
}

// Verify interface compliance
var (
	_ port.MessageSender = (*Messenger)(nil)
	_ port.MessageSender = (*LogSender)(nil)
)
