package models

// Option is stored inline in the question's JSON options column.
type Option struct {
	ID    string `json:"id"`
	Text  string `json:"text"`
	Order int    `json:"order"`
}
