package broken

import (
	"sort"

	"github.com/nixpkgs-broken/hydrawatch/internal/domain"
)

// StatusFailed is the Hydra buildstatus of a build whose own builder exited
// non-zero, as opposed to a failed dependency.
const StatusFailed uint16 = 1

// Job is one directly failing job.
type Job struct {
	Attr     string
	Platform string
	BuildID  uint64
}

func (j Job) String() string { return j.Attr + "." + j.Platform }

// FailingJobs returns the builds that failed directly on a supported
// platform, sorted by attribute then platform.
func FailingJobs(builds []domain.BuildResult) []Job {
	jobs := make([]Job, 0)
	for _, b := range builds {
		if b.BuildStatus != StatusFailed {
			continue
		}
		platform, ok := b.KnownPlatform()
		if !ok {
			continue
		}
		jobs = append(jobs, Job{Attr: b.Attr(), Platform: platform, BuildID: b.ID})
	}
	sort.SliceStable(jobs, func(i, k int) bool {
		if jobs[i].Attr == jobs[k].Attr {
			return jobs[i].Platform < jobs[k].Platform
		}
		return jobs[i].Attr < jobs[k].Attr
	})
	return jobs
}

// Target groups the failing platforms of one attribute.
type Target struct {
	Attr      string
	Platforms []string
}

// Targets groups jobs by attribute. Both targets and platforms are sorted.
func Targets(jobs []Job) []Target {
	byAttr := make(map[string]map[string]bool)
	for _, j := range jobs {
		if byAttr[j.Attr] == nil {
			byAttr[j.Attr] = make(map[string]bool)
		}
		byAttr[j.Attr][j.Platform] = true
	}

	out := make([]Target, 0, len(byAttr))
	for attr, set := range byAttr {
		out = append(out, Target{Attr: attr, Platforms: sortedKeys(set)})
	}
	sort.Slice(out, func(i, k int) bool { return out[i].Attr < out[k].Attr })
	return out
}
