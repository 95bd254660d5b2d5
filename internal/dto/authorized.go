package dto

// AuthorizedPlateRequest is the body of POST /authorized.
type AuthorizedPlateRequest struct {
	PlateText string `json:"plate_text"`
}

// AuthorizedPlateResponse describes one stored plate.
type AuthorizedPlateResponse struct {
	PlateText  string `json:"plate_text"`
	Authorized bool   `json:"authorized"`
}

type RemovedPlateResponse struct {
	Removed string `json:"removed"`
}
