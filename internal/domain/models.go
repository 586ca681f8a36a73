package domain

import "strings"

// Domain contains core models shared by the client, watcher and publishers.

// BuildResult is one Hydra build as reported by /build/{id}.
type BuildResult struct {
	ID          uint64   `json:"id" yaml:"id"`
	Jobset      string   `json:"jobset" yaml:"jobset"`
	NixName     string   `json:"nixname" yaml:"nixname"`
	System      string   `json:"system" yaml:"system"`
	BuildStatus uint16   `json:"buildstatus" yaml:"buildstatus"`
	JobsetEvals []uint64 `json:"jobsetevals" yaml:"jobsetevals"`
	Timestamp   uint64   `json:"timestamp" yaml:"timestamp"`
	Job         string   `json:"job" yaml:"job"`
	Project     string   `json:"project" yaml:"project"`
	Finished    uint16   `json:"finished" yaml:"finished"`
}

// Attr returns the job name without its trailing platform suffix.
func (b BuildResult) Attr() string {
	attr, _ := splitJob(b.Job)
	return attr
}

// Platform returns the platform suffix of the job name, or "" when the job has none.
func (b BuildResult) Platform() string {
	_, platform := splitJob(b.Job)
	return platform
}

// SupportedPlatforms are the systems Hydra builds nixpkgs for, sorted.
var SupportedPlatforms = []string{
	"aarch64-darwin",
	"aarch64-linux",
	"x86_64-darwin",
	"x86_64-linux",
}

// IsSupportedPlatform reports whether p is one of SupportedPlatforms.
func IsSupportedPlatform(p string) bool {
	for _, sp := range SupportedPlatforms {
		if sp == p {
			return true
		}
	}
	return false
}

// KnownPlatform returns the platform suffix of the job and whether it names a
// supported system. Jobs such as "stdenvBootstrapTools.x86_64-darwin.test"
// or "manual" report false.
func (b BuildResult) KnownPlatform() (string, bool) {
	_, platform := splitJob(b.Job)
	return platform, IsSupportedPlatform(platform)
}

func splitJob(job string) (string, string) {
	idx := strings.LastIndex(job, ".")
	if idx < 0 {
		return job, ""
	}
	return job[:idx], job[idx+1:]
}
