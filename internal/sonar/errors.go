package sonar

import "fmt"

// ParseError reports a raw token that could not be decoded. An ensemble
// either decodes completely or is rejected whole; there is no partial
// recovery inside the decoder.
type ParseError struct {
	Field string // schema field being parsed, or "" for structural problems
	Token string // offending raw token, if any
	Err   error
}

func (e *ParseError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("parse %s from %q: %v", e.Field, e.Token, e.Err)
	}
	return fmt.Sprintf("parse ensemble: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// SchemaViolation reports a reference outside the declared schema: a
// declared sample count above the fixed intensity capacity, an unknown
// field name, or a record built against a different schema.
type SchemaViolation struct {
	Detail string
}

func (e *SchemaViolation) Error() string {
	return fmt.Sprintf("schema violation: %s", e.Detail)
}

// SchemaMismatch reports a persisted table whose column header set does
// not match the in-memory schema.
type SchemaMismatch struct {
	Detail string
}

func (e *SchemaMismatch) Error() string {
	return fmt.Sprintf("schema mismatch: %s", e.Detail)
}
