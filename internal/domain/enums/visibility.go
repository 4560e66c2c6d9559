package enums

// VisibilityMode controls who may see the original of a private photo.
type VisibilityMode string

const (
	VisibilityPublic            VisibilityMode = "public"
	VisibilityMatchOnly         VisibilityMode = "match_only"
	VisibilityWhitelist         VisibilityMode = "whitelist"
	VisibilityBlurredUntilMatch VisibilityMode = "blurred_until_match"
)

func (v VisibilityMode) Valid() bool {
	switch v {
	case VisibilityPublic, VisibilityMatchOnly, VisibilityWhitelist, VisibilityBlurredUntilMatch:
		return true
	default:
		return false
	}
}

// GrantMode is the variant a signed photo grant points at.
type GrantMode string

const (
	GrantModeOriginal GrantMode = "original"
	GrantModeBlur     GrantMode = "blur"
)

func (m GrantMode) Valid() bool {
	return m == GrantModeOriginal || m == GrantModeBlur
}
