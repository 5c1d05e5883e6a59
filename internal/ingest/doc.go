// Package ingest discovers media files and registers them in the catalog.
//
// A scan walks the input folder, hashes each candidate with BLAKE3, classifies
// it by extension (with a tag probe for ambiguous audio containers), and
// upserts it into the catalog in pending state. A watcher feeds newly dropped
// files into the same registration path.
package ingest
