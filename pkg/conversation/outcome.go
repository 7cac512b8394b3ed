package conversation

// Outcome is the terminal state of handling one inbound event.
type Outcome int

const (
	// OutcomeIgnored: the event was not for the state machine (group chat,
	// empty text, unknown command without a session).
	OutcomeIgnored Outcome = iota
	// OutcomePrompted: a session was opened and the user was asked to write.
	OutcomePrompted
	// OutcomeEntryFailed: the prompt could not be delivered; no session kept.
	OutcomeEntryFailed
	// OutcomeInvalidLink: /start carried an unknown payload.
	OutcomeInvalidLink
	OutcomeForwarded
	OutcomeRejectedTooShort
	OutcomeRejectedTooLong
	OutcomeRejectedTopic
	OutcomeForwardFailed
	// OutcomeUnexpected: text arrived with no open session.
	OutcomeUnexpected
	OutcomeCancelled
	OutcomeNothingToCancel
	OutcomeWelcome
	// OutcomeInfo: static content was shown (permission catalogue, info pages).
	OutcomeInfo
	// OutcomePublished: an admin command republished group panels.
	OutcomePublished
	OutcomeDenied
	OutcomeInternalError
)

var outcomeNames = map[Outcome]string{
	OutcomeIgnored:          "ignored",
	OutcomePrompted:         "prompted",
	OutcomeEntryFailed:      "entry_failed",
	OutcomeInvalidLink:      "invalid_link",
	OutcomeForwarded:        "forwarded",
	OutcomeRejectedTooShort: "rejected_too_short",
	OutcomeRejectedTooLong:  "rejected_too_long",
	OutcomeRejectedTopic:    "rejected_topic",
	OutcomeForwardFailed:    "forward_failed",
	OutcomeUnexpected:       "unexpected",
	OutcomeCancelled:        "cancelled",
	OutcomeNothingToCancel:  "nothing_to_cancel",
	OutcomeWelcome:          "welcome",
	OutcomeInfo:             "info",
	OutcomePublished:        "published",
	OutcomeDenied:           "denied",
	OutcomeInternalError:    "internal_error",
}

func (o Outcome) String() string {
	if name, ok := outcomeNames[o]; ok {
		return name
	}
	return "unknown"
}
