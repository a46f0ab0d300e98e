package dto

type StandResponse struct {
	Index int     `json:"index"`
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Lat   float64 `json:"lat"`
	Lng   float64 `json:"lng"`
	Img   string  `json:"img,omitempty"`
}

type ListStandsResponse struct {
	Stands []StandResponse `json:"stands"`
}
