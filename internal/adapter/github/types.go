package github

import "time"

// apiUser is a GitHub user reference in API payloads.
type apiUser struct {
	Login string `json:"login"`
}

// apiLabel is a label attached to a pull request.
type apiLabel struct {
	Name string `json:"name"`
}

// apiPull is the subset of the pulls API payload the pipeline consumes.
type apiPull struct {
	Number    int        `json:"number"`
	Title     string     `json:"title"`
	HTMLURL   string     `json:"html_url"`
	State     string     `json:"state"`
	Body      string     `json:"body"`
	User      *apiUser   `json:"user"`
	CreatedAt time.Time  `json:"created_at"`
	MergedAt  *time.Time `json:"merged_at"`
	MergedBy  *apiUser   `json:"merged_by"`
	Labels    []apiLabel `json:"labels"`
	Head      struct {
		SHA string `json:"sha"`
	} `json:"head"`
}

// apiPullFile is one entry from the pull request files listing.
type apiPullFile struct {
	Filename  string `json:"filename"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
	Status    string `json:"status"`
}

// apiContent is an entry from the repository contents API. For files
// the content is base64 with embedded newlines.
type apiContent struct {
	Type     string `json:"type"` // "file" or "dir"
	Name     string `json:"name"`
	Path     string `json:"path"`
	Size     int    `json:"size"`
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

// apiCheckRun is a single check result in the check-runs listing.
type apiCheckRun struct {
	Name       string `json:"name"`
	Status     string `json:"status"`
	Conclusion string `json:"conclusion"`
}

// apiCheckRuns is the check-runs listing payload.
type apiCheckRuns struct {
	TotalCount int           `json:"total_count"`
	CheckRuns  []apiCheckRun `json:"check_runs"`
}

// apiError is the GitHub error envelope.
type apiError struct {
	Message string `json:"message"`
}
