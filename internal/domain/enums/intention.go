package enums

type Intention string

const (
	IntentionSerious    Intention = "serious"
	IntentionCasual     Intention = "casual"
	IntentionFriendship Intention = "friendship"
)

func (i Intention) Valid() bool {
	switch i {
	case IntentionSerious, IntentionCasual, IntentionFriendship:
		return true
	default:
		return false
	}
}
