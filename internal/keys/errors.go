// Package keys rebuilds primary and foreign key columns after tables have
// been synthesized or transformed independently.
package keys

import "fmt"

// ConsistencyError reports a relationship that cannot be rebuilt.
type ConsistencyError struct {
	Table  string
	Column string
	Reason string
}

func (e *ConsistencyError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("key consistency error on table %s: %s", e.Table, e.Reason)
	}
	return fmt.Sprintf("key consistency error on %s.%s: %s", e.Table, e.Column, e.Reason)
}

// EncodingError reports a value the fitted encoder has never seen.
type EncodingError struct {
	Table  string
	Column string
	Value  any
}

func (e *EncodingError) Error() string {
	if e.Table == "" {
		return fmt.Sprintf("unseen label %v", e.Value)
	}
	return fmt.Sprintf("unseen label %v in %s.%s", e.Value, e.Table, e.Column)
}
