package models

// User is the trimmed participant record returned by the REST API.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar,omitempty"`
}
