// Package preflight provides readiness checks for the filesystem paths,
// correlation store and transform endpoint purpleify depends on.
//
// The "purpleify check" command runs them all; decode and fetch call
// CheckDirectoryAccess on the output directory before writing pages.
package preflight
