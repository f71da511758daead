package course

// Decision is the outcome of reconciling a fresh scan with a stored record.
type Decision struct {
	// Course is the document to persist.
	Course *Course
	// Insert is true when no record exists yet.
	Insert bool
	// ClearThumbnail asks the store to drop the thumbnail blob so the
	// synchronizer re-imports it from disk.
	ClearThumbnail bool
	// Preserved is true when editable fields were taken from the stored record.
	Preserved bool
}

// Reconcile merges a freshly scanned document with the stored editable fields.
//
// With preserve set and an existing record, title, description, category,
// release date and thumbnail name come from the record unless empty there;
// lessons always come from the fresh scan. Otherwise the fresh document is
// used as is and the stored thumbnail blob is cleared.
func Reconcile(fresh *Course, existing *Editable, preserve bool) Decision {
	merged := *fresh

	if existing == nil {
		return Decision{Course: &merged, Insert: true, ClearThumbnail: true}
	}
	if !preserve {
		return Decision{Course: &merged, ClearThumbnail: true}
	}

	merged.Title = firstNonEmpty(existing.Title, fresh.Title)
	merged.Description = firstNonEmpty(existing.Description, fresh.Description)
	merged.Category = firstNonEmpty(existing.Category, fresh.Category)
	merged.ReleaseDate = firstNonEmpty(existing.ReleaseDate, fresh.ReleaseDate)
	merged.Thumbnail = firstNonEmpty(existing.Thumbnail, fresh.Thumbnail)

	return Decision{Course: &merged, Preserved: true}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
