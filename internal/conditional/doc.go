// Package conditional applies the validator-driven merge protocol shared by
// every syncable record: send the stored etag and last-sync time as
// preconditions, skip the record when the remote reports it unchanged, and
// otherwise overlay the payload and refresh the envelope.
//
// Every remote call goes through the scheduler supplied to the Cache.
package conditional
