package cli

// Blank-importing every built-in plug-in package so its init()
// registration runs in the production binary. Test files import these
// packages directly where they exercise them; this is the only place
// production code needs to name all of them at once.
import (
	_ "github.com/git-theta/theta/internal/checkpointfmt/pickleddict"
	_ "github.com/git-theta/theta/internal/checkpointfmt/sharded"
	_ "github.com/git-theta/theta/internal/merge/average"
	_ "github.com/git-theta/theta/internal/merge/take"
	_ "github.com/git-theta/theta/internal/update/dense"
	_ "github.com/git-theta/theta/internal/update/lowrank"
	_ "github.com/git-theta/theta/internal/update/scalarmul"
	_ "github.com/git-theta/theta/internal/update/sparse"
)
