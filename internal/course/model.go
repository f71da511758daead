package course

import "time"

const (
	// ThumbnailFile is the fixed logical name of every course thumbnail.
	ThumbnailFile = "thumbnail.png"

	// MainContentID identifies the synthetic lesson built from root videos.
	MainContentID    = "main-content"
	MainContentTitle = "Main Content"

	// DefaultCategory is assigned to newly discovered courses.
	DefaultCategory = "Uncategorized"

	releaseDateLayout = "2006-01-02"
)

// Course is the catalog document stored in the data column.
type Course struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Thumbnail   string   `json:"thumbnail"`
	Category    string   `json:"category"`
	ReleaseDate string   `json:"releaseDate"`
	Lessons     []Lesson `json:"lessons"`
	LastUpdate  int64    `json:"lastUpdate"`
}

// Lesson groups the videos of one folder. Folder is empty for the root lesson.
type Lesson struct {
	ID     string  `json:"id"`
	Title  string  `json:"title"`
	Folder string  `json:"folder"`
	Videos []Video `json:"videos"`
	Readme string  `json:"readme,omitempty"`
}

// Video is a playable file relative to its lesson folder.
type Video struct {
	Title     string     `json:"title"`
	File      string     `json:"file"`
	Subtitles []Subtitle `json:"subtitles"`
}

// Subtitle is a WebVTT track attached to a video.
type Subtitle struct {
	Label   string `json:"label"`
	Kind    string `json:"kind"`
	SrcLang string `json:"srclang"`
	Src     string `json:"src"`
}

// Editable holds the user-editable metadata of a stored course.
type Editable struct {
	Title       string
	Description string
	Category    string
	ReleaseDate string
	Thumbnail   string
}

// Editable returns the user-editable fields of c.
func (c *Course) Editable() Editable {
	return Editable{
		Title:       c.Title,
		Description: c.Description,
		Category:    c.Category,
		ReleaseDate: c.ReleaseDate,
		Thumbnail:   c.Thumbnail,
	}
}

// Touch refreshes LastUpdate so clients drop cached copies.
func (c *Course) Touch(now time.Time) {
	c.LastUpdate = now.UnixMilli()
}

// NewCourse builds a course document with first-scan defaults for a folder.
func NewCourse(folderName string, lessons []Lesson, now time.Time) *Course {
	if lessons == nil {
		lessons = []Lesson{}
	}
	return &Course{
		ID:          DeriveID(folderName),
		Title:       folderName,
		Description: "Course: " + folderName,
		Thumbnail:   ThumbnailFile,
		Category:    DefaultCategory,
		ReleaseDate: now.Format(releaseDateLayout),
		Lessons:     lessons,
		LastUpdate:  now.UnixMilli(),
	}
}
