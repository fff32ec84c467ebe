package dispatcher

import (
	"context"

	"github.com/garyjia/cost-approval/internal/domain/event"
)

// Handler reacts to a committed workflow event
type Handler func(ctx context.Context, evt *event.Event) error

// HandlerInfo describes a subscription
type HandlerInfo struct {
	Name      string
	EventType event.Type
	Handler   Handler
}
