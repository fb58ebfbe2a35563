package model

// Item is the domain model for a todo entry.
// ID is assigned by the store; the UI never makes one up.
type Item struct {
	ID        string `json:"id" yaml:"id"`
	Text      string `json:"text" yaml:"text"`
	Completed bool   `json:"completed" yaml:"completed"`
}
