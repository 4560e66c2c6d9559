package enums

type Region string

const (
	RegionTargetMetro Region = "target_metro"
	RegionHomeCountry Region = "home_country"
	RegionPartnerBloc Region = "partner_bloc"
	RegionOther       Region = "other"
)

func (r Region) Valid() bool {
	switch r {
	case RegionTargetMetro, RegionHomeCountry, RegionPartnerBloc, RegionOther:
		return true
	default:
		return false
	}
}
