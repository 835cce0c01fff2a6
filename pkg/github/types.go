package github

// PullRequestHead describes where a pull request's proposed changes live:
// the contributing repository and the branch holding the commits.
type PullRequestHead struct {
	// Number is the pull request number in the base repository.
	Number int

	// Owner and Repo name the repository the head branch lives in. For a
	// fork-based pull request this differs from the base repository.
	Owner string
	Repo  string

	// Branch is the head branch name.
	Branch string

	// CloneURL is the HTTPS clone URL of the head repository.
	CloneURL string

	// SHA is the head commit at resolution time.
	SHA string

	// Title is the pull request title.
	Title string

	// HTMLURL is the pull request's web page.
	HTMLURL string
}
