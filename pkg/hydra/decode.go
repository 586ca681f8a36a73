package hydra

import (
	"github.com/nixpkgs-broken/hydrawatch/internal/domain"
)

// BuildResultSchema is the shape of GET /build/{id}.
var BuildResultSchema = Schema{
	{Name: "id", Kind: KindUint64},
	{Name: "jobset", Kind: KindString},
	{Name: "nixname", Kind: KindString},
	{Name: "system", Kind: KindString},
	{Name: "buildstatus", Kind: KindUint16},
	{Name: "jobsetevals", Kind: KindUint64List},
	{Name: "timestamp", Kind: KindUint64},
	{Name: "job", Kind: KindString},
	{Name: "project", Kind: KindString},
	{Name: "finished", Kind: KindUint16},
}

// evalsSchema is the shape of GET /jobset/{project}/{jobset}/evals, newest first.
var evalsSchema = Schema{
	{Name: "evals", Kind: KindObjectList, Elem: Schema{
		{Name: "id", Kind: KindUint64},
	}},
}

// evalSchema is the shape of GET /eval/{id}.
var evalSchema = Schema{
	{Name: "builds", Kind: KindUint64List},
}

// DecodeBuildResult maps a /build/{id} body onto a BuildResult.
func DecodeBuildResult(body []byte) (domain.BuildResult, error) {
	rec, err := DecodeObject(body, BuildResultSchema)
	if err != nil {
		return domain.BuildResult{}, err
	}
	return domain.BuildResult{
		ID:          rec.Uint64("id"),
		Jobset:      rec.String("jobset"),
		NixName:     rec.String("nixname"),
		System:      rec.String("system"),
		BuildStatus: rec.Uint16("buildstatus"),
		JobsetEvals: rec.Uint64s("jobsetevals"),
		Timestamp:   rec.Uint64("timestamp"),
		Job:         rec.String("job"),
		Project:     rec.String("project"),
		Finished:    rec.Uint16("finished"),
	}, nil
}

// DecodeEvalIDs returns the evaluation ids of a jobset evals listing in the order received.
func DecodeEvalIDs(body []byte) ([]uint64, error) {
	rec, err := DecodeObject(body, evalsSchema)
	if err != nil {
		return nil, err
	}
	evals := rec.Records("evals")
	ids := make([]uint64, 0, len(evals))
	for _, e := range evals {
		ids = append(ids, e.Uint64("id"))
	}
	return ids, nil
}

// DecodeEvalBuilds returns the build ids of one evaluation.
func DecodeEvalBuilds(body []byte) ([]uint64, error) {
	rec, err := DecodeObject(body, evalSchema)
	if err != nil {
		return nil, err
	}
	return rec.Uint64s("builds"), nil
}
