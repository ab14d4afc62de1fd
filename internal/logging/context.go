package logging

import "context"

type contextKey int

const (
	paramKey contextKey = iota
	pathKey
	updateTypeKey
	componentKey
)

// WithParam returns a context carrying the given parameter name for
// logging. Parameter names are the dotted form of the name tuple, e.g.
// "layers.3.weight".
func WithParam(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, paramKey, name)
}

// WithPath returns a context carrying the given checkpoint path for
// logging.
func WithPath(ctx context.Context, path string) context.Context {
	return context.WithValue(ctx, pathKey, path)
}

// WithUpdateType returns a context carrying the given update plug-in name
// for logging.
func WithUpdateType(ctx context.Context, updateType string) context.Context {
	return context.WithValue(ctx, updateTypeKey, updateType)
}

// WithComponent returns a context carrying the given component name
// (e.g. "driver", "lfsadapter") for logging.
func WithComponent(ctx context.Context, component string) context.Context {
	return context.WithValue(ctx, componentKey, component)
}
