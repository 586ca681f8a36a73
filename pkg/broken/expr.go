package broken

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/nixpkgs-broken/hydrawatch/internal/domain"
)

var (
	// ErrNoPlatforms is returned when there is nothing to mark.
	ErrNoPlatforms = errors.New("no platforms given")
	// ErrUnsupportedPlatform wraps a platform outside domain.SupportedPlatforms.
	ErrUnsupportedPlatform = errors.New("unsupported platform")
	// ErrAlreadyMarked means every failing platform is already marked broken.
	ErrAlreadyMarked = errors.New("already marked broken on every failing platform")
)

var platformConditions = map[string]string{
	"aarch64-linux":  "stdenv.hostPlatform.isLinux && stdenv.hostPlatform.isAarch64",
	"x86_64-linux":   "stdenv.hostPlatform.isLinux && stdenv.hostPlatform.isx86_64",
	"aarch64-darwin": "stdenv.hostPlatform.isDarwin && stdenv.hostPlatform.isAarch64",
	"x86_64-darwin":  "stdenv.hostPlatform.isDarwin && stdenv.hostPlatform.isx86_64",
}

// familyConditions collapse both platforms of one kernel into a single term.
var familyConditions = []struct {
	cond      string
	platforms [2]string
}{
	{cond: "stdenv.hostPlatform.isLinux", platforms: [2]string{"aarch64-linux", "x86_64-linux"}},
	{cond: "stdenv.hostPlatform.isDarwin", platforms: [2]string{"aarch64-darwin", "x86_64-darwin"}},
}

// Expression returns the nix expression for meta.broken on platforms.
//
//	[aarch64-linux]                 stdenv.hostPlatform.isLinux && stdenv.hostPlatform.isAarch64
//	[aarch64-linux x86_64-darwin]   (… isLinux && … isAarch64) || (… isDarwin && … isx86_64)
//	[aarch64-linux x86_64-linux]    stdenv.hostPlatform.isLinux
//	all supported platforms         true
func Expression(platforms []string) (string, error) {
	set, err := platformSet(platforms)
	if err != nil {
		return "", err
	}
	if len(set) == 0 {
		return "", ErrNoPlatforms
	}
	if len(set) == len(domain.SupportedPlatforms) {
		return "true", nil
	}

	var terms []string
	for _, fam := range familyConditions {
		if set[fam.platforms[0]] && set[fam.platforms[1]] {
			terms = append(terms, fam.cond)
			delete(set, fam.platforms[0])
			delete(set, fam.platforms[1])
		}
	}

	rest := sortedKeys(set)
	wrap := len(rest) > 1 || len(terms) > 0
	for _, p := range rest {
		cond := platformConditions[p]
		if wrap {
			cond = "(" + cond + ")"
		}
		terms = append(terms, cond)
	}
	return strings.Join(terms, " || "), nil
}

// Plan is the mark to apply to one attribute.
type Plan struct {
	Attr string
	// Platforms is the union of failing and already marked platforms, sorted.
	Platforms []string
	Expr      string
}

// PlanMark merges the failing platforms of attr with those it is already
// marked broken on. It returns ErrAlreadyMarked when the mark would not change.
func PlanMark(attr string, failing, alreadyMarked []string) (Plan, error) {
	if err := CheckAttr(attr); err != nil {
		return Plan{}, err
	}
	fail, err := platformSet(failing)
	if err != nil {
		return Plan{}, fmt.Errorf("%s: %w", attr, err)
	}
	if len(fail) == 0 {
		return Plan{}, fmt.Errorf("%s: %w", attr, ErrNoPlatforms)
	}
	marked, err := platformSet(alreadyMarked)
	if err != nil {
		return Plan{}, fmt.Errorf("%s: %w", attr, err)
	}

	extra := 0
	for p := range fail {
		if !marked[p] {
			extra++
		}
		marked[p] = true
	}
	if extra == 0 {
		return Plan{}, fmt.Errorf("%s: %w", attr, ErrAlreadyMarked)
	}

	union := sortedKeys(marked)
	expr, err := Expression(union)
	if err != nil {
		return Plan{}, fmt.Errorf("%s: %w", attr, err)
	}
	return Plan{Attr: attr, Platforms: union, Expr: expr}, nil
}

func platformSet(platforms []string) (map[string]bool, error) {
	set := make(map[string]bool, len(platforms))
	for _, p := range platforms {
		if !domain.IsSupportedPlatform(p) {
			return nil, fmt.Errorf("%w: %q", ErrUnsupportedPlatform, p)
		}
		set[p] = true
	}
	return set, nil
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
