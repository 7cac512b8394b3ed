package telegram

import (
	"strings"

	"comitebot/pkg/bus"

	"github.com/mymmrac/telego"
)

// toEvent converts one update into an inbound event. Updates the bot does not
// act on (edits, media, service messages, commands addressed to another bot)
// report false.
func toEvent(update telego.Update, botUsername string) (bus.InboundEvent, bool) {
	if query := update.CallbackQuery; query != nil {
		event := bus.InboundEvent{
			Kind:       bus.KindCallback,
			Channel:    channelName,
			UpdateID:   update.UpdateID,
			Sender:     toSender(query.From),
			CallbackID: query.ID,
			Data:       query.Data,
		}
		if query.Message != nil {
			chat := query.Message.GetChat()
			event.ChatID = chat.ID
			event.ChatType = chat.Type
		}
		return event, true
	}

	message := update.Message
	if message == nil || message.From == nil {
		return bus.InboundEvent{}, false
	}

	text := strings.TrimSpace(message.Text)
	if text == "" {
		return bus.InboundEvent{}, false
	}

	event := bus.InboundEvent{
		Channel:  channelName,
		UpdateID: update.UpdateID,
		Sender:   toSender(*message.From),
		ChatID:   message.Chat.ID,
		ChatType: message.Chat.Type,
	}

	if strings.HasPrefix(text, "/") {
		command, args, ok := parseCommand(text, botUsername)
		if !ok {
			return bus.InboundEvent{}, false
		}
		event.Kind = bus.KindCommand
		event.Command = command
		event.Args = args
		return event, true
	}

	event.Kind = bus.KindText
	event.Text = message.Text
	return event, true
}

func toSender(user telego.User) bus.Sender {
	return bus.Sender{
		ID:        user.ID,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Username:  user.Username,
	}
}

// parseCommand splits "/name@bot arg1 arg2". A command addressed to a different
// bot is not ours.
func parseCommand(text, botUsername string) (string, []string, bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return "", nil, false
	}

	name := strings.TrimPrefix(fields[0], "/")
	if at := strings.IndexByte(name, '@'); at >= 0 {
		target := name[at+1:]
		name = name[:at]
		if botUsername != "" && !strings.EqualFold(target, strings.TrimPrefix(botUsername, "@")) {
			return "", nil, false
		}
	}
	if name == "" {
		return "", nil, false
	}

	var args []string
	if len(fields) > 1 {
		args = fields[1:]
	}
	return strings.ToLower(name), args, true
}
