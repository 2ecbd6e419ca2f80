package taskgraph

// Selector picks the endpoint to dial from the registry entries that match the
// scheduler. It is only called with a non-empty slice, in registry order.
type Selector interface {
	Select(candidates []Service) Service
}

// SelectorFunc adapts a function to the Selector interface.
type SelectorFunc func(candidates []Service) Service

// Select calls f(candidates).
func (f SelectorFunc) Select(candidates []Service) Service {
	return f(candidates)
}

// First selects the first matching entry in registry order.
var First Selector = SelectorFunc(func(candidates []Service) Service {
	return candidates[0]
})
