package conversation

import (
	"fmt"
	"strconv"
	"strings"

	"comitebot/pkg/action"
	"comitebot/pkg/content"
	"comitebot/pkg/markdown"
	"comitebot/pkg/validate"
)

// User-facing texts. Every function returns MarkdownV2.

var esc = markdown.EscapeV2

const (
	callbackPermissionMenu = "menu_permisos"
	commandPermissions     = "permisos"
)

func promptText(t action.Type, viaLink bool) string {
	var b strings.Builder
	if viaLink {
		b.WriteString(esc("Hola de nuevo 👋 Parece que hiciste clic en un enlace para iniciar una " + t.Label() + "."))
		b.WriteString("\n\n")
		b.WriteString(esc("Por favor, escribe ahora tu "))
	} else {
		b.WriteString(esc("Hola 👋 Por favor, escribe ahora tu "))
	}
	b.WriteString(markdown.Bold(t.Label()))
	b.WriteString(esc(" en un único mensaje."))
	b.WriteString("\n\n")
	if t == action.Query {
		b.WriteString(esc("Recibirás una respuesta tan pronto como sea posible."))
		b.WriteString("\n")
	}
	b.WriteString(markdown.Italic("Recuerda que solo los miembros del comité verán tu mensaje."))
	b.WriteString("\n")
	b.WriteString(esc("Puedes usar /cancel para cancelar."))
	return b.String()
}

func welcomeText() string {
	return esc("Hola 👋 Soy el bot asistente del Comité.") + "\n" +
		esc("Para enviar una ") + markdown.Bold("consulta") + esc(" o ") + markdown.Bold("sugerencia") +
		esc(" de forma privada, por favor, utiliza los botones 🙋‍♂️ o 💡 en los temas correspondientes del grupo del Comité.") + "\n\n" +
		esc("También puedes usar /permisos para consultar la información sobre permisos, bolsa de horas y excedencias.")
}

func invalidLinkText() string {
	return esc("Hola 👋. El enlace que has usado no es válido o ha expirado.") + "\n" +
		esc("Si quieres enviar una consulta o sugerencia, por favor, usa los botones correspondientes en el grupo del Comité.")
}

func unexpectedText() string {
	return esc("Hola 👋 Recibí tu mensaje, pero no estoy esperando una consulta o sugerencia en este momento.") + "\n\n" +
		esc("Si quieres enviar una, por favor, ve al grupo del Comité y utiliza los botones 🙋‍♂️ (Consulta) o 💡 (Sugerencia) en los temas correspondientes.") + "\n\n" +
		esc("También puedes usar /start para ver las opciones o /cancel si crees que estás en medio de una acción.")
}

func cancelledText() string {
	return esc("Operación cancelada. Puedes empezar de nuevo cuando quieras usando los botones del grupo.")
}

func nothingToCancelText() string {
	return esc("No hay ninguna operación activa que cancelar.")
}

func tooShortText(t action.Type) string {
	return esc(fmt.Sprintf("⚠️ Tu %s es demasiado corta. Debe tener al menos %d caracteres.", t.Label(), validate.MinLength)) + "\n\n" +
		esc("Tu mensaje no ha sido enviado. Pulsa el botón para volver al grupo e inténtalo de nuevo.")
}

func tooLongText(t action.Type, length int) string {
	return esc(fmt.Sprintf("⚠️ Tu %s es demasiado larga (%d caracteres). Debe tener como máximo %d caracteres.", t.Label(), length, validate.MaxLength)) + "\n\n" +
		esc("Tu mensaje no ha sido enviado. Resúmelo y pulsa el botón para volver al grupo e inténtalo de nuevo.")
}

func forbiddenTopicText(topic string) string {
	text := esc("⚠️ Tu consulta trata sobre ") + markdown.Bold(topic) +
		esc(", un tema que ya tiene respuesta en la información publicada por el Comité.") + "\n\n" +
		esc("Tu mensaje no ha sido enviado. Revisa la documentación del grupo antes de volver a consultar.")
	switch {
	case topic == permissionsTopic:
		text += "\n" + esc("Puedes ver el detalle de cada permiso con /"+commandPermissions+".")
	case hasInfoPage(topic):
		text += "\n" + esc("Pulsa el botón para ver la información sobre "+strings.ToLower(topic)+".")
	}
	return text
}

const permissionsTopic = "Permisos"

func hasInfoPage(topic string) bool {
	_, ok := content.InfoPageForTopic(topic)
	return ok
}

func infoPageText(p content.InfoPage) string {
	var b strings.Builder
	b.WriteString(markdown.Bold(p.Title))
	for _, section := range p.Sections {
		b.WriteString("\n\n")
		if section.Heading != "" {
			b.WriteString(markdown.Bold(section.Heading))
			b.WriteString("\n")
		}
		for i, item := range section.Items {
			if i > 0 {
				b.WriteString("\n")
			}
			b.WriteString(esc("- " + item))
		}
	}
	return b.String()
}

func forwardedText(t action.Type) string {
	return esc(fmt.Sprintf("✅ ¡Tu %s ha sido enviada correctamente al Comité!", t.Label())) + "\n" +
		esc("Gracias por tu mensaje.")
}

func forwardFailedText(t action.Type) string {
	return esc(fmt.Sprintf("❌ Hubo un problema técnico al enviar tu %s.", t.Label())) + "\n" +
		esc("Por favor, inténtalo de nuevo más tarde o contacta con un administrador.")
}

func internalErrorText() string {
	return esc("❌ Ocurrió un error interno inesperado. Por favor, inténtalo de nuevo más tarde desde los botones del grupo.")
}

func notStartedAlert(botUsername string) string {
	return fmt.Sprintf("⚠️ Necesitas iniciar el chat conmigo (@%s) y pulsar 'Iniciar', luego vuelve a pulsar el botón.", botUsername)
}

const (
	entryErrorAlert     = "❌ Ocurrió un error técnico al iniciar."
	invalidOptionAlert  = "Opción no válida."
	deniedText          = "⛔ No tienes permiso para usar este comando."
	permissionsMenuText = "Selecciona un permiso:"
	otherTopicsText     = "Espero que te haya sido de utilidad. ¿Quieres información sobre otro tema?"
)

func permissionText(p content.Permission) string {
	return markdown.Bold(p.Title) + "\n\n" +
		esc("- Duración: "+p.Duration) + "\n" +
		esc("- Documentación: "+p.Documentation)
}

func publishingText(what string) string {
	return esc("Intentando publicar/actualizar " + what + " en el grupo del Comité...")
}

func publishResultText(sent, total int) string {
	switch {
	case sent == total:
		return esc("✅ ¡Publicado con éxito!")
	case sent == 0:
		return esc("❌ No se pudo publicar nada. Revisa los logs.")
	default:
		return esc(fmt.Sprintf("⚠️ Solo se publicaron %d de %d mensajes. Revisa los logs.", sent, total))
	}
}

// TopicLink is the t.me URL of a forum topic in a private supergroup.
func TopicLink(groupID int64, topicID int) string {
	id := strconv.FormatInt(groupID, 10)
	if strings.HasPrefix(id, "-100") {
		id = strings.TrimPrefix(id, "-100")
	} else {
		id = strings.TrimPrefix(id, "-")
	}
	return fmt.Sprintf("https://t.me/c/%s/%d", id, topicID)
}

// DeepLink is the t.me URL that opens a private chat with the bot and sends
// /start with payload.
func DeepLink(botUsername, payload string) string {
	link := "https://t.me/" + strings.TrimPrefix(botUsername, "@")
	if payload != "" {
		link += "?start=" + payload
	}
	return link
}
