package model

// JiraBinding maps a repo (optionally scoped to one branch) to a JIRA
// project and the versions/channel that project's issues should be filed or
// notified against. A branch-specific binding overrides the repo-wide one,
// per spec.md's channel-override rule.
type JiraBinding struct {
	ID          int64
	Repo        RepoRef
	Branch      string // empty means "applies to all branches"
	ProjectKey  string
	Channel     string // chat channel override for this branch, if any
	ProgressTransition string
	ReviewTransition   string
	ResolvedTransition string
	// VersionScript, if non-empty, is run in a sandbox against the pushed
	// branch to compute the concrete version a fix shipped in, per
	// spec.md §4.6. Empty means this binding never cuts a version.
	VersionScript string
}

// RepoConfig is the hub's per-repo configuration: which jira bindings apply,
// the default notify channel, and whether jira-reference checks run at all.
type RepoConfig struct {
	ID               int64
	Repo             RepoRef
	DefaultChannel   string
	NotifyMode       NotifyMode
	JiraCheckEnabled bool
	// ForcePushNotify gates whether a forced push on a non-versioned branch
	// enqueues a force-push diff-comparison job for this repo.
	ForcePushNotify bool
	JiraBindings    []JiraBinding
}

// ChannelFor returns the chat channel a notification about branch should be
// routed to: a branch-specific JiraBinding's channel if one names this
// branch, else the repo's default channel.
func (rc RepoConfig) ChannelFor(branch string) string {
	for _, b := range rc.JiraBindings {
		if b.Branch == branch && b.Channel != "" {
			return b.Channel
		}
	}
	return rc.DefaultChannel
}

// BindingFor returns the JiraBinding that applies to branch: an exact
// branch match first, then the repo-wide (branch == "") binding.
func (rc RepoConfig) BindingFor(branch string) (JiraBinding, bool) {
	var wide JiraBinding
	haveWide := false
	for _, b := range rc.JiraBindings {
		if b.Branch == branch {
			return b, true
		}
		if b.Branch == "" {
			wide = b
			haveWide = true
		}
	}
	return wide, haveWide
}

// UserBinding links a source-host login to the same person's tracker and
// chat identities.
type UserBinding struct {
	ID          int64
	HostLogin   string
	TrackerUser string
	ChatUserID  string
	MuteDMs     bool
}
