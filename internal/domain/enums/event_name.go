package enums

type EventName string

const (
	EventAppOpen     EventName = "app_open"
	EventViewProfile EventName = "view_profile"
	EventLike        EventName = "like"
	EventMatch       EventName = "match"
	EventMessageSend EventName = "message_send"
	EventReport      EventName = "report"
	EventBlock       EventName = "block"
)
