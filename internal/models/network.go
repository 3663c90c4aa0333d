package models

// Network is one entry of the gateway's network catalog.
type Network struct {
	Slug string `json:"slug"`
	Name string `json:"name"`
}
