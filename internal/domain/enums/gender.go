package enums

type Gender string

const (
	GenderFemale    Gender = "female"
	GenderMale      Gender = "male"
	GenderNonbinary Gender = "nonbinary"
)

func (g Gender) Valid() bool {
	switch g {
	case GenderFemale, GenderMale, GenderNonbinary:
		return true
	default:
		return false
	}
}
