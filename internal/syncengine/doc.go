// Package syncengine synchronizes one series descriptor against TMDB.
//
// A descriptor without a key is first resolved by searching the directory
// name. The series record is then synced through the conditional cache,
// followed by every season and, when extra images are enabled, every image
// set. Work under a record only runs when that record merged new data or has
// never been synced; an unchanged series with fully synced seasons costs a
// single request. Seasons and episodes fan out concurrently and all remote
// calls share one scheduler. Artwork referenced by merged payloads is handed
// to the asset store as it is discovered.
package syncengine
