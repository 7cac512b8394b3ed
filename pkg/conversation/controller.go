// Package conversation runs the per-user submission state machine: an entry
// trigger opens a session, the next private text consumes it, and every path
// ends with a reply to the user and the session gone.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"comitebot/pkg/action"
	"comitebot/pkg/bus"
	"comitebot/pkg/channel"
	"comitebot/pkg/content"
	"comitebot/pkg/forward"
	"comitebot/pkg/markdown"
	"comitebot/pkg/routing"
	"comitebot/pkg/session"
	"comitebot/pkg/validate"
)

const messagePreviewLimit = 120

// Sender delivers a formatted body to a destination topic.
type Sender interface {
	Send(ctx context.Context, dest routing.Destination, body string) error
}

// Settings are the static values the controller needs from configuration.
type Settings struct {
	BotUsername string
	// SourceGroupID is the group holding the entry panels.
	SourceGroupID      int64
	EntryTopics        map[action.Type]int
	DocumentationTopic int
	// Admins lists user ids or usernames allowed to run admin commands. Empty
	// allows every private user.
	Admins []string
}

type Controller struct {
	store     session.Store
	routes    *routing.Table
	sender    Sender
	messenger channel.Messenger
	events    *bus.Bus
	settings  Settings
	admins    map[string]struct{}
	locks     *keyedMutex
	newID     func() string
	log       *slog.Logger
}

// New wires a controller. events may be nil.
func New(store session.Store, routes *routing.Table, sender Sender, messenger channel.Messenger, events *bus.Bus, settings Settings, log *slog.Logger) (*Controller, error) {
	if store == nil {
		return nil, errors.New("session store is required")
	}
	if routes == nil {
		return nil, errors.New("routing table is required")
	}
	if sender == nil {
		return nil, errors.New("forwarder is required")
	}
	if messenger == nil {
		return nil, errors.New("messenger is required")
	}
	if log == nil {
		log = slog.Default()
	}

	settings.BotUsername = strings.TrimPrefix(strings.TrimSpace(settings.BotUsername), "@")

	return &Controller{
		store:     store,
		routes:    routes,
		sender:    sender,
		messenger: messenger,
		events:    events,
		settings:  settings,
		admins:    adminSet(settings.Admins),
		locks:     newKeyedMutex(),
		newID:     uuid.NewString,
		log:       log.With("component", "conversation.controller"),
	}, nil
}

// Handle processes one inbound event to completion. It never panics and never
// returns an error: every failure becomes an Outcome and a message to the user.
// Events of the same user are serialized; other users run concurrently.
func (c *Controller) Handle(ctx context.Context, ev bus.InboundEvent) (outcome Outcome) {
	id := c.newID()
	req := &request{
		ev:  ev,
		id:  id,
		log: c.log.With("request_id", id, "user_id", ev.UserID(), "kind", string(ev.Kind)),
	}

	defer func() {
		if r := recover(); r != nil {
			req.log.Error("Panic while handling event", "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
			c.publish(ctx, req, bus.EventInternalError, "", fmt.Errorf("panic: %v", r), nil)
			outcome = OutcomeInternalError
		}
	}()

	unlock := c.locks.Lock(ev.UserID())
	defer unlock()

	switch ev.Kind {
	case bus.KindCallback:
		outcome = c.handleCallback(ctx, req)
	case bus.KindCommand:
		outcome = c.handleCommand(ctx, req)
	case bus.KindText:
		outcome = c.handleText(ctx, req)
	default:
		outcome = OutcomeIgnored
	}

	req.log.Debug("Event handled", "outcome", outcome.String())
	return outcome
}

type request struct {
	ev  bus.InboundEvent
	id  string
	log *slog.Logger
}

// Callbacks come from buttons, usually in the group; replies always go to the
// user's private chat.
func (c *Controller) handleCallback(ctx context.Context, req *request) Outcome {
	data := strings.TrimSpace(req.ev.Data)

	if typ, ok := action.FromPayload(data); ok {
		return c.openFromCallback(ctx, req, typ)
	}

	switch {
	case data == callbackPermissionMenu:
		c.answer(ctx, req, "")
		c.sendPermissionMenu(ctx, req)
		return OutcomeInfo
	case strings.HasPrefix(data, content.InfoCallbackPrefix):
		page, ok := content.InfoPageByKey(strings.TrimPrefix(data, content.InfoCallbackPrefix))
		if !ok {
			c.answer(ctx, req, invalidOptionAlert)
			return OutcomeIgnored
		}
		c.answer(ctx, req, "")
		c.reply(ctx, req, req.ev.UserID(), infoPageText(page), nil)
		c.reply(ctx, req, req.ev.UserID(), esc(otherTopicsText), [][]bus.Button{otherTopicButtons(page.Key)})
		return OutcomeInfo
	case strings.HasPrefix(data, content.PermissionCallbackPrefix):
		perm, ok := content.PermissionInfo(strings.TrimPrefix(data, content.PermissionCallbackPrefix))
		if !ok {
			c.answer(ctx, req, invalidOptionAlert)
			return OutcomeIgnored
		}
		c.answer(ctx, req, "")
		c.reply(ctx, req, req.ev.UserID(), permissionText(perm), [][]bus.Button{
			{{Text: "Ver otros permisos", Data: callbackPermissionMenu}},
		})
		return OutcomeInfo
	default:
		req.log.Warn("Unrecognized callback data", "data", data)
		c.answer(ctx, req, invalidOptionAlert)
		return OutcomeIgnored
	}
}

func (c *Controller) openFromCallback(ctx context.Context, req *request, typ action.Type) Outcome {
	userID := req.ev.UserID()

	if _, err := c.store.Open(ctx, userID, typ); err != nil {
		req.log.Error("Failed to open session", "action", typ, "error", err)
		c.publish(ctx, req, bus.EventInternalError, typ, err, nil)
		c.answer(ctx, req, entryErrorAlert)
		return OutcomeInternalError
	}

	_, err := c.messenger.SendMessage(ctx, bus.OutboundMessage{
		ChatID:    userID,
		Text:      promptText(typ, false),
		ParseMode: markdown.ModeV2,
	})
	if err != nil {
		// The session is useless if the user never sees the prompt.
		if _, clearErr := c.store.Clear(ctx, userID); clearErr != nil {
			req.log.Error("Failed to clear session after prompt failure", "error", clearErr)
		}

		if channel.KindOf(err) == channel.ErrorPermissionDenied {
			req.log.Info("User has not started the bot", "action", typ)
			c.answer(ctx, req, notStartedAlert(c.settings.BotUsername))
		} else {
			req.log.Error("Failed to send prompt", "action", typ, "error", err)
			c.answer(ctx, req, entryErrorAlert)
		}
		return OutcomeEntryFailed
	}

	c.answer(ctx, req, "")
	req.log.Info("Session opened", "action", typ, "via", "callback")
	c.publish(ctx, req, bus.EventSessionOpened, typ, nil, map[string]string{"via": "callback"})
	return OutcomePrompted
}

func (c *Controller) handleCommand(ctx context.Context, req *request) Outcome {
	if !req.ev.Private() {
		return OutcomeIgnored
	}

	switch strings.ToLower(req.ev.Command) {
	case "start":
		return c.handleStart(ctx, req)
	case "cancel":
		return c.handleCancel(ctx, req)
	case commandPermissions:
		c.discardSession(ctx, req)
		c.sendPermissionMenu(ctx, req)
		return OutcomeInfo
	case "postpaneles":
		c.discardSession(ctx, req)
		return c.publishPanels(ctx, req)
	case "documentacion":
		c.discardSession(ctx, req)
		return c.publishDocumentation(ctx, req)
	default:
		// Any other command ends an open submission.
		existed, err := c.store.Clear(ctx, req.ev.UserID())
		if err != nil {
			return c.internalError(ctx, req, "", fmt.Errorf("clear session: %w", err))
		}
		if !existed {
			return OutcomeIgnored
		}
		c.publish(ctx, req, bus.EventSessionCancelled, "", nil, map[string]string{"command": req.ev.Command})
		c.reply(ctx, req, req.ev.ChatID, cancelledText(), nil)
		return OutcomeCancelled
	}
}

func (c *Controller) handleStart(ctx context.Context, req *request) Outcome {
	userID := req.ev.UserID()

	if len(req.ev.Args) == 0 || strings.TrimSpace(req.ev.Args[0]) == "" {
		c.discardSession(ctx, req)
		c.reply(ctx, req, req.ev.ChatID, welcomeText(), nil)
		return OutcomeWelcome
	}

	payload := strings.TrimSpace(req.ev.Args[0])
	typ, ok := action.FromPayload(payload)
	if !ok {
		c.discardSession(ctx, req)
		req.log.Warn("Invalid deep link payload", "payload", payload)
		c.reply(ctx, req, req.ev.ChatID, invalidLinkText(), c.groupButtons())
		return OutcomeInvalidLink
	}

	if _, err := c.store.Open(ctx, userID, typ); err != nil {
		return c.internalError(ctx, req, typ, fmt.Errorf("open session: %w", err))
	}

	if _, err := c.messenger.SendMessage(ctx, bus.OutboundMessage{
		ChatID:    req.ev.ChatID,
		Text:      promptText(typ, true),
		ParseMode: markdown.ModeV2,
	}); err != nil {
		req.log.Error("Failed to send prompt", "action", typ, "error", err)
		if _, clearErr := c.store.Clear(ctx, userID); clearErr != nil {
			req.log.Error("Failed to clear session after prompt failure", "error", clearErr)
		}
		return OutcomeEntryFailed
	}

	req.log.Info("Session opened", "action", typ, "via", "deep_link")
	c.publish(ctx, req, bus.EventSessionOpened, typ, nil, map[string]string{"via": "deep_link"})
	return OutcomePrompted
}

func (c *Controller) handleCancel(ctx context.Context, req *request) Outcome {
	existed, err := c.store.Clear(ctx, req.ev.UserID())
	if err != nil {
		return c.internalError(ctx, req, "", fmt.Errorf("clear session: %w", err))
	}

	if !existed {
		c.reply(ctx, req, req.ev.ChatID, nothingToCancelText(), nil)
		return OutcomeNothingToCancel
	}

	req.log.Info("Session cancelled")
	c.publish(ctx, req, bus.EventSessionCancelled, "", nil, map[string]string{"command": "cancel"})
	c.reply(ctx, req, req.ev.ChatID, cancelledText(), nil)
	return OutcomeCancelled
}

func (c *Controller) handleText(ctx context.Context, req *request) Outcome {
	if !req.ev.Private() || strings.TrimSpace(req.ev.Text) == "" {
		return OutcomeIgnored
	}

	sess, found, err := c.store.Take(ctx, req.ev.UserID())
	if err != nil {
		return c.internalError(ctx, req, "", fmt.Errorf("take session: %w", err))
	}
	if !found {
		req.log.Info("Unexpected message", "content", previewText(req.ev.Text))
		c.publish(ctx, req, bus.EventUnexpectedMessage, "", nil, nil)
		c.reply(ctx, req, req.ev.ChatID, unexpectedText(), c.groupButtons())
		return OutcomeUnexpected
	}

	typ := sess.Action
	result := validate.Validate(typ, req.ev.Text)
	if !result.OK {
		return c.reject(ctx, req, typ, result)
	}

	dest, err := c.routes.Resolve(typ)
	if err != nil {
		return c.internalError(ctx, req, typ, err)
	}

	body := forward.Format(typ, req.ev.Sender, req.ev.Text)
	if err := c.sender.Send(ctx, dest, body); err != nil {
		kind := channel.ErrorUnknown
		var transportErr *forward.TransportError
		if errors.As(err, &transportErr) {
			kind = transportErr.Kind
		}

		req.log.Error("Failed to forward message",
			"action", typ,
			"group_id", dest.GroupID,
			"topic_id", dest.TopicID,
			"kind", kind,
			"error", err,
		)
		c.publish(ctx, req, bus.EventForwardFailed, typ, err, map[string]string{"kind": string(kind)})
		c.reply(ctx, req, req.ev.ChatID, forwardFailedText(typ), nil)
		return OutcomeForwardFailed
	}

	req.log.Info("Message forwarded", "action", typ, "group_id", dest.GroupID, "topic_id", dest.TopicID, "content", previewText(req.ev.Text))
	c.publish(ctx, req, bus.EventMessageForwarded, typ, nil, map[string]string{
		"group_id": strconv.FormatInt(dest.GroupID, 10),
		"topic_id": strconv.Itoa(dest.TopicID),
	})
	c.reply(ctx, req, req.ev.ChatID, forwardedText(typ), nil)
	return OutcomeForwarded
}

func (c *Controller) reject(ctx context.Context, req *request, typ action.Type, result validate.Result) Outcome {
	req.log.Info("Submission rejected", "action", typ, "reason", result.Reason, "topic", result.Topic)
	c.publish(ctx, req, bus.EventValidationRejected, typ, nil, map[string]string{
		"reason": string(result.Reason),
		"topic":  result.Topic,
	})

	if result.Reason == validate.ReasonForbiddenTopic {
		c.reply(ctx, req, req.ev.ChatID, forbiddenTopicText(result.Topic), topicInfoButtons(result.Topic))
		return OutcomeRejectedTopic
	}

	var buttons [][]bus.Button
	if topic := c.settings.EntryTopics[typ]; topic > 0 {
		buttons = [][]bus.Button{{{Text: "Volver a intentarlo " + typ.Emoji(), URL: TopicLink(c.settings.SourceGroupID, topic)}}}
	}
	if result.Reason == validate.ReasonTooLong {
		length := utf8.RuneCountInString(strings.TrimSpace(req.ev.Text))
		c.reply(ctx, req, req.ev.ChatID, tooLongText(typ, length), buttons)
		return OutcomeRejectedTooLong
	}
	c.reply(ctx, req, req.ev.ChatID, tooShortText(typ), buttons)
	return OutcomeRejectedTooShort
}

// topicInfoButtons points a forbidden-topic rejection at the content that
// answers it, when the bot serves any.
func topicInfoButtons(topic string) [][]bus.Button {
	if topic == permissionsTopic {
		return [][]bus.Button{{{Text: "Ver permisos", Data: callbackPermissionMenu}}}
	}
	if page, ok := content.InfoPageForTopic(topic); ok {
		return [][]bus.Button{{{Text: page.Title, Data: page.CallbackData()}}}
	}
	return nil
}

// otherTopicButtons lists the permission menu and every info page except exclude.
func otherTopicButtons(exclude string) []bus.Button {
	var row []bus.Button
	if exclude != commandPermissions {
		row = append(row, bus.Button{Text: "Permisos", Data: callbackPermissionMenu})
	}
	for _, page := range content.InfoPages() {
		if page.Key == exclude {
			continue
		}
		row = append(row, bus.Button{Text: page.Topic, Data: page.CallbackData()})
	}
	return row
}

func (c *Controller) internalError(ctx context.Context, req *request, typ action.Type, err error) Outcome {
	req.log.Error("Internal error", "action", typ, "error", err)
	c.publish(ctx, req, bus.EventInternalError, typ, err, nil)
	c.reply(ctx, req, req.ev.ChatID, internalErrorText(), nil)
	return OutcomeInternalError
}

// discardSession drops an open session when another command takes over.
func (c *Controller) discardSession(ctx context.Context, req *request) {
	existed, err := c.store.Clear(ctx, req.ev.UserID())
	if err != nil {
		req.log.Warn("Failed to discard session", "error", err)
		return
	}
	if existed {
		req.log.Info("Open session discarded", "command", req.ev.Command)
		c.publish(ctx, req, bus.EventSessionCancelled, "", nil, map[string]string{"command": req.ev.Command})
	}
}

func (c *Controller) sendPermissionMenu(ctx context.Context, req *request) {
	perms := content.Permissions()
	buttons := make([][]bus.Button, 0, len(perms))
	for _, p := range perms {
		buttons = append(buttons, []bus.Button{{Text: p.Title, Data: p.CallbackData()}})
	}
	buttons = append(buttons, otherTopicButtons(commandPermissions))
	c.reply(ctx, req, req.ev.UserID(), esc(permissionsMenuText), buttons)
}

// groupButtons link back to the entry topics of the source group.
func (c *Controller) groupButtons() [][]bus.Button {
	var rows [][]bus.Button
	for _, typ := range action.All() {
		topic := c.settings.EntryTopics[typ]
		if topic <= 0 || c.settings.SourceGroupID == 0 {
			continue
		}
		rows = append(rows, []bus.Button{{
			Text: typ.Emoji() + " " + typ.Title(),
			URL:  TopicLink(c.settings.SourceGroupID, topic),
		}})
	}
	return rows
}

func (c *Controller) reply(ctx context.Context, req *request, chatID int64, text string, buttons [][]bus.Button) {
	if chatID == 0 {
		chatID = req.ev.UserID()
	}

	_, err := c.messenger.SendMessage(ctx, bus.OutboundMessage{
		ChatID:    chatID,
		Text:      text,
		ParseMode: markdown.ModeV2,
		Buttons:   buttons,
	})
	if err != nil {
		req.log.Error("Failed to send reply", "chat_id", chatID, "error", err)
	}
}

func (c *Controller) answer(ctx context.Context, req *request, alert string) {
	if req.ev.CallbackID == "" {
		return
	}
	if err := c.messenger.AnswerCallback(ctx, req.ev.CallbackID, alert); err != nil {
		req.log.Warn("Failed to answer callback", "error", err)
	}
}

func (c *Controller) publish(ctx context.Context, req *request, typ bus.EventType, act action.Type, err error, payload map[string]string) {
	event := bus.Event{
		Type:      typ,
		Channel:   req.ev.Channel,
		UserID:    req.ev.UserID(),
		Action:    string(act),
		RequestID: req.id,
		Payload:   payload,
	}
	if err != nil {
		event.Error = err.Error()
	}
	c.events.PublishEvent(ctx, event)
}

func adminSet(values []string) map[string]struct{} {
	if len(values) == 0 {
		return nil
	}

	allowed := make(map[string]struct{}, len(values))
	for _, value := range values {
		trimmed := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(value), "@"))
		if trimmed == "" {
			continue
		}
		allowed[trimmed] = struct{}{}
	}

	if len(allowed) == 0 {
		return nil
	}
	return allowed
}

// isAdmin matches the sender by numeric id or username. An empty admin list
// allows everyone.
func (c *Controller) isAdmin(sender bus.Sender) bool {
	if len(c.admins) == 0 {
		return true
	}
	if _, ok := c.admins[strconv.FormatInt(sender.ID, 10)]; ok {
		return true
	}
	if sender.Username == "" {
		return false
	}
	_, ok := c.admins[strings.ToLower(sender.Username)]
	return ok
}

func previewText(text string) string {
	trimmed := strings.TrimSpace(text)
	runes := []rune(trimmed)
	if len(runes) <= messagePreviewLimit {
		return trimmed
	}
	return string(runes[:messagePreviewLimit]) + "..."
}
