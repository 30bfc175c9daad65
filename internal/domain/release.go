package domain

// Release holds the metadata produced while preparing one release.

type Release struct {
	Current     *Version
	Next        *Version
	CommitCount int
	TagName     string
	Branch      string
	Notes       string
}
