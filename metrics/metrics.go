// Shared metric label names, so that instrumentation is consistent
// across components.
package metrics

const (
	LabelMethod  = "method"
	LabelSuccess = "success"
)
