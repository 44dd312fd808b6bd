// Package preflight provides readiness checks for external tools, services,
// and filesystem paths that Captionizer depends on.
//
// These checks run in two contexts:
//   - The workflow manager calls RunAll before starting a batch. A failed
//     check rejects the batch so no job is attempted against a missing
//     directory or an unusable translation endpoint.
//   - The CLI "captionizer status" command renders CheckSystemDeps and the
//     individual checks as a table.
//
// Each check is gated by the workflow that needs it.
package preflight
