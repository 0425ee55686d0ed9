// internal/model/models.go
package model

import (
	"errors"
	"net/url"
	"sort"
	"time"
)

// DefaultDisplayName is shown for users who have not set a display name.
const DefaultDisplayName = "user without name"

// User is the read-only profile snapshot returned by a user lookup.
type User struct {
	Login       string `json:"login"`
	Name        string `json:"name,omitempty"`
	AvatarURL   string `json:"avatar_url"`
	PublicRepos int    `json:"public_repos"`
	Followers   int    `json:"followers"`
	ReposURL    string `json:"repos_url"`
}

// DisplayName returns the user's name, or DefaultDisplayName when unset.
func (u User) DisplayName() string {
	if u.Name == "" {
		return DefaultDisplayName
	}
	return u.Name
}

// Validate checks the fields every later request depends on.
func (u User) Validate() error {
	if u.Login == "" {
		return errors.New("user payload is missing login")
	}
	if u.ReposURL == "" {
		return errors.New("user payload is missing repos_url")
	}
	parsed, err := url.Parse(u.ReposURL)
	if err != nil || !parsed.IsAbs() || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return errors.New("user payload has an invalid repos_url")
	}
	return nil
}

// Repository represents the metadata of a GitHub repository.
type Repository struct {
	ID          int64     `json:"id"`
	Owner       string    `json:"owner"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	URL         string    `json:"html_url"`
	Language    *string   `json:"language,omitempty"`
	StarsCount  int       `json:"stargazers_count"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Validate checks that the repository can be used to build a commits request.
func (r Repository) Validate() error {
	if r.Name == "" {
		return errors.New("repository payload is missing name")
	}
	return nil
}

type Commit struct {
	SHA         string    `json:"sha"`
	AuthorName  string    `json:"author_name"`
	AuthorEmail string    `json:"author_email"`
	Message     string    `json:"message"`
	URL         string    `json:"html_url"`
	AuthorDate  time.Time `json:"author_date"`
}

// SortNewestFirst orders commits by author date, newest first. Commits with
// no author date go last. The sort is stable so equal dates keep the API order.
func SortNewestFirst(commits []Commit) {
	sort.SliceStable(commits, func(i, j int) bool {
		a, b := commits[i].AuthorDate, commits[j].AuthorDate
		if a.IsZero() || b.IsZero() {
			return !a.IsZero() && b.IsZero()
		}
		return a.After(b)
	})
}

// LatestCommit returns the author date of the first commit in a list sorted by
// SortNewestFirst. ok is false for an empty list or a missing date.
func LatestCommit(commits []Commit) (t time.Time, ok bool) {
	if len(commits) == 0 || commits[0].AuthorDate.IsZero() {
		return time.Time{}, false
	}
	return commits[0].AuthorDate, true
}
