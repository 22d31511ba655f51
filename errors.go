package rulegraph

import "errors"

var (
	// ErrNoBuild is returned when a query or export runs before any graph
	// was built or loaded.
	ErrNoBuild = errors.New("rulegraph: no graph has been built")

	// ErrNoSources is returned by Build when the configuration names no
	// rule sources.
	ErrNoSources = errors.New("rulegraph: no rule sources configured")

	// ErrNoStore is returned for snapshot operations when no database
	// path is configured.
	ErrNoStore = errors.New("rulegraph: snapshot database not configured")

	// ErrRuleNotFound is returned when a rule id does not exist in the
	// current graph.
	ErrRuleNotFound = errors.New("rulegraph: rule not found")

	// ErrInvalidConfig is returned for invalid configuration values.
	ErrInvalidConfig = errors.New("rulegraph: invalid configuration")

	// ErrEngineClosed is returned when operating on a closed engine.
	ErrEngineClosed = errors.New("rulegraph: engine is closed")
)
