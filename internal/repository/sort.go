package repository

// SortOrder selects how entity lists are ordered.
type SortOrder string

const (
	// SortRecent is the default list order: newest first.
	SortRecent SortOrder = "recent"
	// SortName orders alphabetically, as the order editor's pickers need.
	SortName SortOrder = "name"
)

func (s SortOrder) clause() string {
	if s == SortName {
		return "name ASC"
	}
	return "created_at DESC"
}
