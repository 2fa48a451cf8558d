package guard

import "time"

// Context is the ambient system/repo state validators read. It is assembled
// by the caller before evaluation and never mutated by validators, so they
// can run concurrently without locking.
type Context struct {
	RepoPath string `yaml:"repo_path" json:"repo_path"`

	// VCS state.
	VCSClean       bool `yaml:"vcs_clean" json:"vcs_clean"`
	UntrackedFiles int  `yaml:"untracked_files" json:"untracked_files"`

	// Recent operation history inside the failure window.
	RecentFailures int           `yaml:"recent_failures" json:"recent_failures"`
	FailureWindow  time.Duration `yaml:"failure_window" json:"failure_window"`

	// System resource state.
	DiskFreeMB      int64   `yaml:"disk_free_mb" json:"disk_free_mb"`
	SystemLoad      float64 `yaml:"system_load" json:"system_load"`
	BackupAvailable bool    `yaml:"backup_available" json:"backup_available"`

	// Upstream consensus pipeline signals for this operation.
	Upstream UpstreamSignals `yaml:"upstream" json:"upstream"`
}

// DefaultContext returns a context representing a healthy system: clean tree,
// backups up, plenty of disk, confident upstream.
func DefaultContext(repoPath string) Context {
	return Context{
		RepoPath:        repoPath,
		VCSClean:        true,
		FailureWindow:   5 * time.Minute,
		DiskFreeMB:      10 * 1024,
		BackupAvailable: true,
		Upstream:        UpstreamSignals{Confidence: 100, Risk: 0},
	}
}
