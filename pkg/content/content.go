// Package content holds the static texts and links the bot publishes. Values are
// plain text; callers escape them for the parse mode they send with.
package content

import "comitebot/pkg/action"

// Permission is one entry of the paid-leave catalogue shown by /permisos.
type Permission struct {
	Key           string
	Title         string
	Duration      string
	Documentation string
}

// Link is a labelled URL rendered as a URL button.
type Link struct {
	Label string
	URL   string
}

var permissions = []Permission{
	{Key: "hospitalizacion", Title: "🏥 Hospitalización/Reposo", Duration: "2 días naturales", Documentation: "Certificado médico"},
	{Key: "fallecimiento_1_2", Title: "⚰️ Fallecimiento 1º y 2º grado", Duration: "Varios días (especificar)", Documentation: "Certificado de defunción y parentesco"},
	{Key: "fallecimiento_3", Title: "⚰️ Fallecimiento 3º grado", Duration: "Varios días (especificar)", Documentation: "Certificado de defunción y parentesco"},
	{Key: "matrimonio", Title: "💍 Matrimonio", Duration: "15 días", Documentation: "Certificado de matrimonio"},
	{Key: "lactancia", Title: "🤱 Lactancia", Duration: "1 hora diaria", Documentation: "Certificado de nacimiento del hijo"},
	{Key: "maternidad_paternidad", Title: "🤰 Maternidad y Paternidad", Duration: "Varias semanas", Documentation: "Certificado de nacimiento o informe médico"},
	{Key: "nacimiento", Title: "👶 Nacimiento", Duration: "Varios días", Documentation: "Certificado de nacimiento"},
	{Key: "asuntos_propios", Title: "❓ Asuntos Propios", Duration: "Días establecidos por convenio", Documentation: "Solicitud"},
	{Key: "mudanza", Title: "🚚 Mudanza", Duration: "1 día", Documentation: "Justificante de cambio de domicilio"},
	{Key: "formacion_academica", Title: "🎓 Formación Académica", Duration: "Tiempo necesario para exámenes", Documentation: "Justificante de matrícula o examen"},
}

var documentationLinks = []Link{
	{Label: "Calendario laboral", URL: "https://drive.google.com/file/d/1fnQ20Ez9lYMqzObNWMd-XZt5RVj9JBZX/view?usp=drive_link"},
	{Label: "Tablas salariales 2025", URL: "https://drive.google.com/file/d/1653DgFn7B2mGqI-liaVcpYNuM4-8iTWC/view?usp=drive_link"},
	{Label: "Convenio", URL: "https://drive.google.com/file/d/10LWmAFuKUtj6tX5A0RWMA1GF5KCw4s0z/view?usp=drive_link"},
	{Label: "Estatuto de los trabajadores", URL: "https://drive.google.com/file/d/1WtVo-dr4Bb1Qp-qA53iiWfIzxHPwA8fG/view?usp=drive_link"},
	{Label: "Protocolo de desconexión digital", URL: "https://drive.google.com/file/d/1zYWlATSrTfBH8izmGS9TePL8gp99P3fz/view?usp=drive_link"},
	{Label: "Protocolo LGTBI", URL: "https://drive.google.com/file/d/1LmrGtb7Sic-wN4Bstz2gRegeD0ljMT02/view?usp=drive_link"},
	{Label: "Protocolo de acoso", URL: "https://drive.google.com/file/d/1JBrCyBXel-0JxCwhamv2L2zLzPgsDMyT/view?usp=drive_link"},
}

// PermissionCallbackPrefix prefixes the callback data of catalogue buttons.
const PermissionCallbackPrefix = "perm_"

// Permissions returns the catalogue in display order.
func Permissions() []Permission {
	out := make([]Permission, len(permissions))
	copy(out, permissions)
	return out
}

// PermissionInfo looks up one catalogue entry by key.
func PermissionInfo(key string) (Permission, bool) {
	for _, p := range permissions {
		if p.Key == key {
			return p, true
		}
	}
	return Permission{}, false
}

// CallbackData is the button payload that opens this entry.
func (p Permission) CallbackData() string {
	return PermissionCallbackPrefix + p.Key
}

// InfoPage is a longer information page about one topic the committee has
// already answered. Topic matches the validator's forbidden-topic name.
type InfoPage struct {
	Key      string
	Topic    string
	Title    string
	Sections []InfoSection
}

// InfoSection is a bold heading followed by bullet items. Heading may be empty.
type InfoSection struct {
	Heading string
	Items   []string
}

// InfoCallbackPrefix prefixes the callback data of info page buttons.
const InfoCallbackPrefix = "menu_"

var infoPages = []InfoPage{
	{
		Key:   "bolsa",
		Topic: "Bolsa de horas",
		Title: "🕒 Bolsa de horas",
		Sections: []InfoSection{
			{Heading: "Aviso", Items: []string{
				"La empresa avisará con 48 horas de antelación (por escrito al Comité y por WhatsApp al afectado).",
			}},
			{Heading: "Gestión de las horas", Items: []string{
				"Las horas 1 a 50 podrán recuperarse en días alternos o, de manera voluntaria, en días consecutivos.",
				"Las horas 51 a 72 se compensarán con 3 euros por hora trabajada o con 20 minutos de descanso por cada hora.",
			}},
			{Heading: "Compensación de horas", Items: []string{
				"Las horas compensatorias deberán usarse dentro del año fiscal, en días completos y según elección del trabajador, salvo que afecte a la producción o coincida con períodos de alta actividad.",
				"Excepción: si la empresa no permite la compensación a tiempo, las horas se abonarán como horas extraordinarias.",
				"Alternativa: posibilidad de descansar 2 horas seguidas (al inicio o al final de la jornada) en lugar de un día completo.",
			}},
			{Heading: "Trabajo en sábados", Items: []string{
				"Límite: máximo 3 sábados al año por trabajador.",
				"Compensación: equivalente a horas extraordinarias, con pago antes del mes siguiente a su realización.",
			}},
		},
	},
	{
		Key:   "excedencias",
		Topic: "Excedencias",
		Title: "⏳ Excedencias",
		Sections: []InfoSection{
			{Items: []string{
				"Las excedencias se regulan en el Convenio y en el artículo 46 del Estatuto de los trabajadores.",
				"Consulta ambos documentos en el tema de Documentación del grupo del Comité.",
			}},
		},
	},
}

// InfoPages returns the information pages in display order.
func InfoPages() []InfoPage {
	out := make([]InfoPage, len(infoPages))
	copy(out, infoPages)
	return out
}

// InfoPageByKey looks up a page by its key ("bolsa").
func InfoPageByKey(key string) (InfoPage, bool) {
	for _, p := range infoPages {
		if p.Key == key {
			return p, true
		}
	}
	return InfoPage{}, false
}

// InfoPageForTopic looks up the page that answers a forbidden topic.
func InfoPageForTopic(topic string) (InfoPage, bool) {
	for _, p := range infoPages {
		if p.Topic == topic {
			return p, true
		}
	}
	return InfoPage{}, false
}

// CallbackData is the button payload that opens this page ("menu_bolsa").
func (p InfoPage) CallbackData() string {
	return InfoCallbackPrefix + p.Key
}

// DocumentationTitle heads the documentation panel.
const DocumentationTitle = "📄 Documentación disponible:"

// DocumentationLinks returns the documents published by /documentacion.
func DocumentationLinks() []Link {
	out := make([]Link, len(documentationLinks))
	copy(out, documentationLinks)
	return out
}

// PanelText is the message posted above an entry button in the source group.
func PanelText(t action.Type) string {
	switch t {
	case action.Query:
		return "Pulsa aquí si tienes alguna consulta sobre permisos, bolsa de horas, excedencias, etc.\n" +
			"Tu mensaje será privado y solo se permite enviar uno por vez."
	case action.Suggestion:
		return "Pulsa aquí si tienes alguna sugerencia sobre el funcionamiento del grupo o el comité.\n" +
			"Tu mensaje será privado y solo se permite enviar uno por vez."
	default:
		return ""
	}
}

// PanelButton is the label of the entry button ("Iniciar Consulta 🙋‍♂️").
func PanelButton(t action.Type) string {
	return "Iniciar " + t.Title() + " " + t.Emoji()
}
