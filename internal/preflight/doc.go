// Package preflight provides readiness checks for the remote API and the
// filesystem paths a sync depends on.
//
// The CLI "metasync doctor" command runs RunAll and prints one row per
// check; "metasync sync" runs CheckDirectoryAccess on the library root before
// taking the library lock.
package preflight
