// Package take implements the merge strategies that resolve a conflict
// by selecting one side's record outright, without touching the
// underlying tensor — grounded on
// original_source/git_theta/merges/take.py's TakeUs/TakeThem/TakeOriginal.
package take

import (
	"context"
	"fmt"

	"github.com/git-theta/theta/internal/merge"
	"github.com/git-theta/theta/internal/metadata"
	"github.com/git-theta/theta/internal/thetaerr"
)

func init() {
	merge.Register(Ours{})
	merge.Register(Theirs{})
	merge.Register(Original{})
}

// Ours keeps the current branch's record, discarding the incoming change.
type Ours struct{}

// NameOurs is the registered strategy name for Ours.
const NameOurs = "take_us"

func (Ours) Name() string { return NameOurs }

func (Ours) Merge(_ context.Context, _ *merge.Context, name string, ours, _, _ *metadata.ParamRecord, _ merge.Args) (*metadata.ParamRecord, error) {
	return require(ours, name, NameOurs)
}

// Theirs keeps the incoming branch's record, discarding the current change.
type Theirs struct{}

// NameTheirs is the registered strategy name for Theirs.
const NameTheirs = "take_them"

func (Theirs) Name() string { return NameTheirs }

func (Theirs) Merge(_ context.Context, _ *merge.Context, name string, _, theirs, _ *metadata.ParamRecord, _ merge.Args) (*metadata.ParamRecord, error) {
	return require(theirs, name, NameTheirs)
}

// Original keeps the common-ancestor record, discarding both changes.
type Original struct{}

// NameOriginal is the registered strategy name for Original.
const NameOriginal = "take_original"

func (Original) Name() string { return NameOriginal }

func (Original) Merge(_ context.Context, _ *merge.Context, name string, _, _, base *metadata.ParamRecord, _ merge.Args) (*metadata.ParamRecord, error) {
	return require(base, name, NameOriginal)
}

func require(rec *metadata.ParamRecord, name, strategy string) (*metadata.ParamRecord, error) {
	if rec == nil {
		return nil, thetaerr.New(thetaerr.MissingData, fmt.Errorf("%s: no record to take for %s", strategy, name)).WithParam(name).WithPlugin(strategy)
	}
	return rec, nil
}
