package domain

import "fmt"

// Pipeline stage tags reported alongside structured failures.
const (
	StageTranslation = "translation"
	StageValidation  = "validation"
	StageExecution   = "execution"
	StageInsights    = "insights"
)

// Stable failure reasons surfaced to callers.
const (
	ReasonNoSQLFound         = "no_sql_found"
	ReasonNoTables           = "no_tables"
	ReasonMultipleStatements = "multiple_statements"
	ReasonModelTimeout       = "model_timeout"
	ReasonModelError         = "model_error"
	ReasonNotSelect          = "statement_not_allowed"
	ReasonUnknownTable       = "unknown_table"
	ReasonUnknownColumn      = "unknown_column"
	ReasonParseError         = "parse_error"
	ReasonTimeout            = "timeout"
	ReasonRuntimeError       = "runtime_error"
)

// NotFoundError indicates a resource was not found.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// ConflictError indicates a conflict (e.g., duplicate resource).
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

// UploadError indicates an unparseable or unsupported upload.
type UploadError struct {
	Message string
}

func (e *UploadError) Error() string { return e.Message }

// TranslationError indicates the model produced no usable statement, or the
// model call itself failed.
type TranslationError struct {
	Reason  string
	Message string
}

func (e *TranslationError) Error() string { return e.Message }

// ValidationError indicates a candidate statement was rejected by the
// validator. Validation failures are deterministic and never retried.
type ValidationError struct {
	Reason  string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// ExecutionError indicates the statement failed at execution time.
type ExecutionError struct {
	Reason  string
	Message string
}

func (e *ExecutionError) Error() string { return e.Message }

// ExportError indicates an export could not be produced.
type ExportError struct {
	Message string
}

func (e *ExportError) Error() string { return e.Message }

// InsightsError indicates the summary call failed. Insights failures never
// abort the surrounding query flow.
type InsightsError struct {
	Reason  string
	Message string
}

func (e *InsightsError) Error() string { return e.Message }

// ErrNotFound creates a NotFoundError with a formatted message.
func ErrNotFound(format string, args ...interface{}) *NotFoundError {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}

// ErrConflict creates a ConflictError with a formatted message.
func ErrConflict(format string, args ...interface{}) *ConflictError {
	return &ConflictError{Message: fmt.Sprintf(format, args...)}
}

// ErrUpload creates an UploadError with a formatted message.
func ErrUpload(format string, args ...interface{}) *UploadError {
	return &UploadError{Message: fmt.Sprintf(format, args...)}
}

// ErrTranslation creates a TranslationError with the given reason.
func ErrTranslation(reason, format string, args ...interface{}) *TranslationError {
	return &TranslationError{Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// ErrValidation creates a ValidationError with the given reason.
func ErrValidation(reason, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// ErrExecution creates an ExecutionError with the given reason.
func ErrExecution(reason, format string, args ...interface{}) *ExecutionError {
	return &ExecutionError{Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// ErrExport creates an ExportError with a formatted message.
func ErrExport(format string, args ...interface{}) *ExportError {
	return &ExportError{Message: fmt.Sprintf(format, args...)}
}

// ErrInsights creates an InsightsError with the given reason.
func ErrInsights(reason, format string, args ...interface{}) *InsightsError {
	return &InsightsError{Reason: reason, Message: fmt.Sprintf(format, args...)}
}
