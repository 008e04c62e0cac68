package domain

// Location is one entry of the location catalog: a place plus the civilian
// roles that can be handed out there.
type Location struct {
	Name  string   `json:"name"`
	Roles []string `json:"roles"`
}
