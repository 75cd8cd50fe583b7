package hilite

import (
	"github.com/jward/hilite/internal/pass"
	"github.com/jward/hilite/internal/props"
	"github.com/jward/hilite/internal/store"
)

// Aliases for internal types that appear in the public API.

type Annotation = props.Annotation
type Range = props.Range
type Buffer = store.Buffer
type Stats = pass.Stats
type State = pass.State

const (
	Incomplete = pass.Incomplete
	Complete   = pass.Complete
)
