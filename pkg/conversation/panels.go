package conversation

import (
	"context"
	"fmt"

	"comitebot/pkg/action"
	"comitebot/pkg/bus"
	"comitebot/pkg/content"
	"comitebot/pkg/markdown"
)

// PublishPanels posts the entry button of every action into its topic of the
// source group. It reports how many of the panels were sent and the first
// failure.
func (c *Controller) PublishPanels(ctx context.Context) (int, int, error) {
	types := action.All()
	sent := 0
	var firstErr error

	for _, typ := range types {
		topic := c.settings.EntryTopics[typ]
		_, err := c.messenger.SendMessage(ctx, bus.OutboundMessage{
			ChatID:  c.settings.SourceGroupID,
			TopicID: topic,
			Text:    content.PanelText(typ),
			Buttons: [][]bus.Button{{{Text: content.PanelButton(typ), Data: typ.Payload()}}},
		})
		if err != nil {
			c.log.Error("Failed to publish panel", "action", typ, "group_id", c.settings.SourceGroupID, "topic_id", topic, "error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("publish %s panel: %w", typ, err)
			}
			continue
		}
		c.log.Info("Panel published", "action", typ, "group_id", c.settings.SourceGroupID, "topic_id", topic)
		sent++
	}

	return sent, len(types), firstErr
}

// PublishDocumentation posts the documentation links into the documentation
// topic of the source group.
func (c *Controller) PublishDocumentation(ctx context.Context) error {
	links := content.DocumentationLinks()
	buttons := make([][]bus.Button, 0, len(links))
	for _, link := range links {
		buttons = append(buttons, []bus.Button{{Text: link.Label, URL: link.URL}})
	}

	_, err := c.messenger.SendMessage(ctx, bus.OutboundMessage{
		ChatID:    c.settings.SourceGroupID,
		TopicID:   c.settings.DocumentationTopic,
		Text:      markdown.Bold(content.DocumentationTitle),
		ParseMode: markdown.ModeV2,
		Buttons:   buttons,
	})
	if err != nil {
		c.log.Error("Failed to publish documentation", "group_id", c.settings.SourceGroupID, "topic_id", c.settings.DocumentationTopic, "error", err)
		return fmt.Errorf("publish documentation: %w", err)
	}

	c.log.Info("Documentation published", "group_id", c.settings.SourceGroupID, "topic_id", c.settings.DocumentationTopic)
	return nil
}

func (c *Controller) publishPanels(ctx context.Context, req *request) Outcome {
	if !c.isAdmin(req.ev.Sender) {
		req.log.Warn("Admin command denied", "command", req.ev.Command)
		c.reply(ctx, req, req.ev.ChatID, esc(deniedText), nil)
		return OutcomeDenied
	}

	c.reply(ctx, req, req.ev.ChatID, publishingText("los paneles"), nil)
	sent, total, _ := c.PublishPanels(ctx)
	c.reply(ctx, req, req.ev.ChatID, publishResultText(sent, total), nil)
	return OutcomePublished
}

func (c *Controller) publishDocumentation(ctx context.Context, req *request) Outcome {
	if !c.isAdmin(req.ev.Sender) {
		req.log.Warn("Admin command denied", "command", req.ev.Command)
		c.reply(ctx, req, req.ev.ChatID, esc(deniedText), nil)
		return OutcomeDenied
	}

	if c.settings.DocumentationTopic <= 0 {
		c.reply(ctx, req, req.ev.ChatID, esc("⚠️ No hay tema de documentación configurado (TEMA_DOCUMENTACION)."), nil)
		return OutcomePublished
	}

	c.reply(ctx, req, req.ev.ChatID, publishingText("el panel de documentación"), nil)
	sent := 1
	if err := c.PublishDocumentation(ctx); err != nil {
		sent = 0
	}
	c.reply(ctx, req, req.ev.ChatID, publishResultText(sent, 1), nil)
	return OutcomePublished
}
