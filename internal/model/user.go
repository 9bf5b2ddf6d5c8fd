package model

import "time"

// User is a guardian or teacher account. Teachers are flagged, not a separate
// table, so a teacher id can stand in as the guardian on paper submissions.
type User struct {
	ID        int64     `json:"id"`
	FullName  string    `json:"full_name"`
	Email     string    `json:"email"`
	IsTeacher bool      `json:"is_teacher"`
	CreatedAt time.Time `json:"created_at"`
}
