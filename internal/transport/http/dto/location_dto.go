package dto

type LocationRegionRequest struct {
	Lat           *float64 `json:"lat,omitempty"`
	Lon           *float64 `json:"lon,omitempty"`
	CountryName   string   `json:"country_name,omitempty"`
	CountryCode   string   `json:"country_code,omitempty"`
	RegionCode    string   `json:"region_code,omitempty"`
	IPCountryCode string   `json:"ip_country_code,omitempty"`
}

type LocationRegionResponse struct {
	Region       string  `json:"region"`
	IPRegion     *string `json:"ip_region"`
	VPNSuspected bool    `json:"vpn_suspected"`
}
