// Package model defines the data types shared across the downloader:
// games, their downloadable files, platform identifiers and the filter
// set applied to a library before downloading.
//
// Types in this package are plain values. A Game and its Downloads are
// owned by the catalog layer and are never mutated by the download
// engine; filters narrow the set of files to process without touching
// the catalog itself.
package model
