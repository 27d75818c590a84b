package github

import "time"

// Wire shapes for the subset of the GitHub REST payloads gh-watch reads.

type ghUser struct {
	Login string `json:"login"`
}

type ghPull struct {
	ID                 int64      `json:"id"`
	Number             int64      `json:"number"`
	Title              string     `json:"title"`
	HTMLURL            string     `json:"html_url"`
	Draft              bool       `json:"draft"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          *time.Time `json:"updated_at"`
	MergedAt           *time.Time `json:"merged_at"`
	RequestedReviewers []ghUser   `json:"requested_reviewers"`
	MergedBy           *ghUser    `json:"merged_by"`
	User               *ghUser    `json:"user"`
}

func (p ghPull) numberOrID() int64 {
	if p.Number != 0 {
		return p.Number
	}
	return p.ID
}

func (p ghPull) updatedOrCreated() time.Time {
	if p.UpdatedAt != nil {
		return *p.UpdatedAt
	}
	return p.CreatedAt
}

type ghIssue struct {
	ID        int64     `json:"id"`
	Number    int64     `json:"number"`
	Title     string    `json:"title"`
	HTMLURL   string    `json:"html_url"`
	CreatedAt time.Time `json:"created_at"`
	User      *ghUser   `json:"user"`
	// Present when the issue row is really a pull request.
	PullRequest map[string]any `json:"pull_request"`
}

func (i ghIssue) numberOrID() int64 {
	if i.Number != 0 {
		return i.Number
	}
	return i.ID
}

type ghComment struct {
	ID                  int64     `json:"id"`
	IssueURL            string    `json:"issue_url"`
	PullRequestURL      string    `json:"pull_request_url"`
	PullRequestReviewID *int64    `json:"pull_request_review_id"`
	HTMLURL             string    `json:"html_url"`
	CreatedAt           time.Time `json:"created_at"`
	Body                string    `json:"body"`
	User                *ghUser   `json:"user"`
}
