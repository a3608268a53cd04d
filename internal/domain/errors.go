// Package domain defines core types, interfaces, and errors for archive reconciliation.
package domain

import "fmt"

// ConfigError indicates a malformed family descriptor or configuration.
// It is fatal before any traversal begins.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string { return e.Message }

// FilesystemError indicates a directory that exists but could not be read.
// Unlike an absent directory it hides archive content, so it is surfaced.
type FilesystemError struct {
	Path string
	Err  error
}

func (e *FilesystemError) Error() string {
	return fmt.Sprintf("read directory %s: %v", e.Path, e.Err)
}

func (e *FilesystemError) Unwrap() error { return e.Err }

// QueryFailure indicates the catalog could not answer a query.
// An empty answer is never reported as a QueryFailure.
type QueryFailure struct {
	Catalog string
	Query   string
	Err     error
}

func (e *QueryFailure) Error() string {
	if e.Query == "" {
		return fmt.Sprintf("catalog %s: %v", e.Catalog, e.Err)
	}
	return fmt.Sprintf("catalog %s: query %s: %v", e.Catalog, e.Query, e.Err)
}

func (e *QueryFailure) Unwrap() error { return e.Err }

// KeyDerivationError indicates a descriptor/filename inconsistency while
// building a catalog key, e.g. a leaf without a usable date.
type KeyDerivationError struct {
	Family string
	Path   string
	Field  LevelKind
	Reason string
}

func (e *KeyDerivationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("family %s: derive key for %s: %s", e.Family, e.Path, e.Reason)
	}
	return fmt.Sprintf("family %s: derive key for %s: %s %s", e.Family, e.Path, e.Field, e.Reason)
}

// ErrConfig creates a ConfigError with a formatted message.
func ErrConfig(format string, args ...interface{}) *ConfigError {
	return &ConfigError{Message: fmt.Sprintf(format, args...)}
}

// ErrQuery creates a QueryFailure for the given catalog and query description.
func ErrQuery(catalog string, q CatalogQuery, err error) *QueryFailure {
	return &QueryFailure{Catalog: catalog, Query: q.String(), Err: err}
}
