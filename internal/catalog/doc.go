// Package catalog persists the user's game library in a local SQLite
// database so downloads can run without re-fetching the storefront API
// every time.
//
// The store hands games out one at a time through a callback, matching
// the lazy iteration contract of the download engine: a run over a
// large library never materializes the whole catalog in memory.
package catalog
