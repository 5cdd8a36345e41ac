package domain

// User is the subset of a user record the task engine needs. Users are owned
// by an external directory; tasks reference them by ID only.
type User struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}
