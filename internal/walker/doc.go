// Package walker drives a sync run over a library root.
//
// Every non-hidden child directory of the root is a library entry whose
// descriptor file is loaded, handed to the sync engine and written back
// only when its canonical encoding changed. Directories are processed
// concurrently up to a worker limit; a failing directory never stops its
// siblings. A lock file in the root keeps two runs off the same tree.
package walker
