package forward

import (
	"strconv"
	"strings"

	"comitebot/pkg/action"
	"comitebot/pkg/bus"
	"comitebot/pkg/markdown"
)

// Format renders the message the committee reads: a header naming the action,
// the sender attribution, and the user's text. Everything user-supplied is
// escaped for MarkdownV2.
func Format(typ action.Type, sender bus.Sender, text string) string {
	var b strings.Builder

	header := "Nueva " + typ.Label()
	if emoji := typ.Emoji(); emoji != "" {
		header = emoji + " " + header
	}
	b.WriteString(markdown.Bold(header))
	b.WriteString("\n\n")

	b.WriteString(markdown.Bold("De:"))
	b.WriteString(" ")
	b.WriteString(markdown.EscapeV2(sender.FullName()))
	if sender.Username != "" && !strings.HasPrefix(sender.FullName(), "@") {
		b.WriteString(" ")
		b.WriteString(markdown.EscapeV2("(@" + sender.Username + ")"))
	}
	b.WriteString("\n")
	b.WriteString(markdown.Bold("ID:"))
	b.WriteString(" `")
	b.WriteString(strconv.FormatInt(sender.ID, 10))
	b.WriteString("`\n\n")

	b.WriteString(markdown.EscapeV2(strings.TrimSpace(text)))

	return b.String()
}
