// Package api implements the HTTP facade for operating the task queue:
// submitting registered task types, cancelling, querying status, awaiting
// results, and reading queue statistics. The scheduler itself is a
// programmatic dependency; these handlers are thin validation and
// serialization glue around it.
package api
