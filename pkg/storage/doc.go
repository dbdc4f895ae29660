// Package storage writes accepted posts into the download tree.
//
// Files are laid out as <base>/<section>/<endpoint>/<id>.<ext> (with an extra
// <ext> directory when organizing by type). The presence of the target file is
// the deduplication key: a post whose file exists is never fetched again.
//
// Writes go through a temporary file in the target directory and are renamed
// into place once complete.
package storage
