package broken

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/nixpkgs-broken/hydrawatch/internal/domain"
)

// Evaluator answers the questions the marker asks of a nixpkgs checkout.
type Evaluator interface {
	// AttrFile returns the file that defines attr's meta.description.
	AttrFile(ctx context.Context, attr string) (string, error)
	// Broken evaluates attr.meta.broken on platform.
	Broken(ctx context.Context, attr, platform string) (bool, error)
}

// NixEvaluator runs nix-instantiate inside a nixpkgs checkout.
type NixEvaluator struct {
	Dir    string
	Binary string
}

func (n NixEvaluator) AttrFile(ctx context.Context, attr string) (string, error) {
	var file string
	expr := fmt.Sprintf(`with import ./. {}; (builtins.unsafeGetAttrPos "description" %s.meta).file`, attr)
	if err := n.eval(ctx, expr, &file); err != nil {
		return "", err
	}
	return file, nil
}

func (n NixEvaluator) Broken(ctx context.Context, attr, platform string) (bool, error) {
	var broken bool
	expr := fmt.Sprintf(`with import ./. { localSystem = %q; }; %s.meta.broken`, platform, attr)
	if err := n.eval(ctx, expr, &broken); err != nil {
		return false, err
	}
	return broken, nil
}

func (n NixEvaluator) eval(ctx context.Context, expr string, out any) error {
	bin := n.Binary
	if bin == "" {
		bin = "nix-instantiate"
	}
	cmd := exec.CommandContext(ctx, bin, "--eval", "--json", "-E", expr)
	cmd.Dir = n.Dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	raw, err := cmd.Output()
	if err != nil {
		return fmt.Errorf("nix-instantiate: %w: %s", err, firstLine(stderr.String()))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode nix-instantiate output: %w", err)
	}
	return nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// Result describes an applied mark.
type Result struct {
	Plan
	File string
}

// Marker edits nix files to mark attributes broken.
type Marker struct {
	eval Evaluator
}

// NewMarker returns a Marker backed by eval.
func NewMarker(eval Evaluator) *Marker {
	return &Marker{eval: eval}
}

// Mark marks attr broken on the failing platforms plus those it is already
// broken on. The file is restored if the new mark does not evaluate to true
// on every planned platform.
func (m *Marker) Mark(ctx context.Context, attr string, failing []string, comment string) (Result, error) {
	if err := CheckAttr(attr); err != nil {
		return Result{}, err
	}
	if _, err := platformSet(failing); err != nil {
		return Result{}, fmt.Errorf("%s: %w", attr, err)
	}

	file, err := m.eval.AttrFile(ctx, attr)
	if err != nil {
		return Result{}, fmt.Errorf("%s: locate file: %w", attr, err)
	}
	if err := CheckFile(attr, file); err != nil {
		return Result{}, err
	}

	var already []string
	for _, p := range domain.SupportedPlatforms {
		broken, err := m.eval.Broken(ctx, attr, p)
		if err != nil {
			return Result{}, fmt.Errorf("%s: check meta.broken on %s: %w", attr, p, err)
		}
		if broken {
			already = append(already, p)
		}
	}

	plan, err := PlanMark(attr, failing, already)
	if err != nil {
		return Result{}, err
	}

	info, err := os.Stat(file)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", attr, err)
	}
	src, err := os.ReadFile(file)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", attr, err)
	}
	out, err := InsertMark(src, plan.Expr, comment)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %s: %w", attr, file, err)
	}
	if err := os.WriteFile(file, out, info.Mode().Perm()); err != nil {
		return Result{}, fmt.Errorf("%s: %w", attr, err)
	}

	for _, p := range plan.Platforms {
		broken, err := m.eval.Broken(ctx, attr, p)
		if err == nil && !broken {
			err = fmt.Errorf("meta.broken is false on %s after marking", p)
		}
		if err != nil {
			if rerr := os.WriteFile(file, src, info.Mode().Perm()); rerr != nil {
				return Result{}, fmt.Errorf("%s: %w (restore failed: %v)", attr, err, rerr)
			}
			return Result{}, fmt.Errorf("%s: %w", attr, err)
		}
	}
	return Result{Plan: plan, File: file}, nil
}
