// Command metasync synchronizes the metadata descriptors of a video library
// with TMDB.
//
//	metasync sync ~/Videos/Series
//	metasync history
//	metasync doctor ~/Videos/Series
//	metasync config init
package main
