package database

import (
	"time"

	"skillgoblin/internal/course"
)

// CourseRecord is a catalog row without its thumbnail blob.
type CourseRecord struct {
	ID           string
	Title        string
	Description  string
	FolderName   string
	Thumbnail    string
	Category     string
	ReleaseDate  string
	Data         *course.Course
	HasThumbnail bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Editable returns the stored user-editable columns.
func (r *CourseRecord) Editable() course.Editable {
	return course.Editable{
		Title:       r.Title,
		Description: r.Description,
		Category:    r.Category,
		ReleaseDate: r.ReleaseDate,
		Thumbnail:   r.Thumbnail,
	}
}

// CourseFolder links a course id to its folder on disk.
type CourseFolder struct {
	ID         string `json:"id"`
	FolderName string `json:"folderName"`
}

// User is a local account.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Avatar    string    `json:"avatar,omitempty"`
	Theme     string    `json:"theme"`
	IsAdmin   bool      `json:"isAdmin"`
	CreatedAt time.Time `json:"createdAt"`
}
