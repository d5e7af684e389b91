package model

// CheckConclusion mirrors the source host's check-run conclusion enum.
type CheckConclusion string

const (
	ConclusionSuccess CheckConclusion = "success"
	ConclusionFailure CheckConclusion = "failure"
	ConclusionNeutral CheckConclusion = "neutral"
)

// CheckRun is the hub's normalized view of a status check it owns (the
// jira-reference check described in spec.md §4.4/§6.1).
type CheckRun struct {
	Repo       RepoRef
	HeadSHA    string
	Name       string
	Conclusion CheckConclusion
	Summary    string
}
