// Package edition resolves which edition of the installation image a run
// targets. The available editions are enumerated from the image and a
// Resolver strategy picks exactly one of them; anything else is a terminal
// failure before any mount occurs.
package edition

import (
	"context"
	"fmt"
	"strings"

	"github.com/gobwas/glob"

	"github.com/deploykit/winject/internal/servicing"
)

// DefaultPattern is the edition matched when the caller supplies no explicit
// name.
const DefaultPattern = "*Pro*"

// Edition is one selectable product variant inside an installation image.
type Edition struct {
	Index int
	Name  string
}

// ResolutionError is the terminal failure of a Resolver: no match, more than
// one match, or an invalid interactive index.
type ResolutionError struct {
	Reason string
}

func (e *ResolutionError) Error() string {
	return e.Reason
}

// Resolver narrows an edition enumeration down to a single target.
type Resolver interface {
	Resolve(editions []Edition) (Edition, error)
}

// Enumerate lists the editions inside imageFile, in index order as reported
// by the servicing tool.
func Enumerate(ctx context.Context, tool servicing.Tool, imageFile string) ([]Edition, error) {
	infos, err := tool.Info(ctx, imageFile)
	if err != nil {
		return nil, fmt.Errorf("enumerating editions of %s: %w", imageFile, err)
	}
	editions := make([]Edition, len(infos))
	for i, info := range infos {
		editions[i] = Edition{Index: info.Index, Name: info.Name}
	}
	return editions, nil
}

// NameResolver matches edition names case-insensitively against a glob
// pattern. The pattern must match exactly one edition.
type NameResolver struct {
	Pattern string
}

func (r *NameResolver) Resolve(editions []Edition) (Edition, error) {
	g, err := glob.Compile(strings.ToLower(r.Pattern))
	if err != nil {
		return Edition{}, fmt.Errorf("invalid edition pattern %q: %w", r.Pattern, err)
	}

	var matches []Edition
	for _, ed := range editions {
		if g.Match(strings.ToLower(ed.Name)) {
			matches = append(matches, ed)
		}
	}

	switch len(matches) {
	case 0:
		return Edition{}, &ResolutionError{Reason: fmt.Sprintf("edition %q not found among %s", r.Pattern, names(editions))}
	case 1:
		return matches[0], nil
	default:
		return Edition{}, &ResolutionError{Reason: fmt.Sprintf("edition pattern %q is ambiguous, matches %s", r.Pattern, names(matches))}
	}
}

// DefaultResolver applies the documented default pattern.
func DefaultResolver() Resolver {
	return &NameResolver{Pattern: DefaultPattern}
}

// InteractiveResolver presents the enumeration to a callback and validates
// the chosen index against it.
type InteractiveResolver struct {
	// Choose receives the available editions and returns the selected
	// index.
	Choose func(editions []Edition) (int, error)
}

func (r *InteractiveResolver) Resolve(editions []Edition) (Edition, error) {
	index, err := r.Choose(editions)
	if err != nil {
		return Edition{}, err
	}
	for _, ed := range editions {
		if ed.Index == index {
			return ed, nil
		}
	}
	return Edition{}, &ResolutionError{Reason: fmt.Sprintf("invalid index %d, available editions are %s", index, names(editions))}
}

func names(editions []Edition) string {
	strs := make([]string, len(editions))
	for i, ed := range editions {
		strs[i] = fmt.Sprintf("%d:%q", ed.Index, ed.Name)
	}
	return strings.Join(strs, ", ")
}
