// Package archive builds the gzip tar archives submitted to R2R and computes
// the MD5 digests the repository verifies them with.
package archive
