package graph

const (
	ErrTypeOutOfBounds      = "out_of_bounds"
	ErrTypeInvalidConfig    = "invalid_config"
	ErrTypeInvalidArgument  = "invalid_argument"
	ErrTypeGraphClosed      = "graph_closed"
	ErrTypeMalformedFrustum = "malformed_frustum"
	ErrTypeStaleResult      = "stale_result"
)
