package channel

import (
	"context"

	"comitebot/pkg/bus"
)

// Handler processes one inbound channel event. Replies are sent through the
// channel's Messenger, so a handler returns nothing.
type Handler func(context.Context, bus.InboundEvent)

// Messenger is the outbound side of a chat platform.
type Messenger interface {
	SendMessage(ctx context.Context, msg bus.OutboundMessage) (int, error)
	AnswerCallback(ctx context.Context, callbackID string, alertText string) error
}

// Adapter bridges one external transport (for example Telegram) into the bot.
type Adapter interface {
	Name() string
	Run(context.Context, Handler) error
}
