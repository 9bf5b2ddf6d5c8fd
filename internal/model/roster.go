package model

import "time"

// Class is an external reference entity, mutated by the enrollment subsystem
// and only read here to resolve fan-out scope.
type Class struct {
	ID        int64     `json:"id"`
	SchoolID  int64     `json:"school_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Student is an external reference entity. Guardian links live in the
// student_guardians join table.
type Student struct {
	ID        int64     `json:"id"`
	SchoolID  int64     `json:"school_id"`
	FullName  string    `json:"full_name"`
	CreatedAt time.Time `json:"created_at"`
}
