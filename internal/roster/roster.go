package roster

import "time"

// Student is one entry in an attendance book. Name and Phone are optional;
// Phone, when set, is unique within its scope. Name is never a uniqueness key.
type Student struct {
	ID        string    `json:"id"`
	ProjectID *string   `json:"projectId,omitempty"`
	Name      *string   `json:"name"`
	Phone     *string   `json:"phone"`
	School    *string   `json:"school,omitempty"`
	Year      *string   `json:"year,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Attendance records one check-in. A student has at most one per date.
type Attendance struct {
	ID        string    `json:"id"`
	StudentID string    `json:"studentId"`
	Date      string    `json:"date"`
	CheckedAt time.Time `json:"checkedAt"`
}

// Project is an attendance book owned by one admin account.
type Project struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"userId"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// Scope selects the partition uniqueness and lookups run in: a single
// project's roster, or the global roster when zero.
type Scope struct {
	ProjectID string
}

// Global is the unpartitioned roster.
var Global = Scope{}

// In scopes lookups to one project.
func In(projectID string) Scope {
	return Scope{ProjectID: projectID}
}

// IsGlobal reports whether the scope is the global roster.
func (s Scope) IsGlobal() bool {
	return s.ProjectID == ""
}

// StudentListing is a student with its attendance count, for admin listings.
type StudentListing struct {
	Student
	AttendanceCount int `json:"attendanceCount"`
}

// SheetRow is one student's presence state for a single date.
type SheetRow struct {
	StudentID    string     `json:"id"`
	Name         *string    `json:"name"`
	Phone        *string    `json:"phone"`
	IsPresent    bool       `json:"isPresent"`
	CheckedAt    *time.Time `json:"checkedAt"`
	AttendanceID *string    `json:"attendanceId"`
}

// ExportRow is one student with its full check-in history, for CSV export.
type ExportRow struct {
	Name   *string  `json:"name"`
	Phone  *string  `json:"phone"`
	School *string  `json:"school"`
	Year   *string  `json:"year"`
	Dates  []string `json:"attendances"`
}
