// Package packaging orchestrates a full R2R packaging run for one cruise:
// root file copies, the combined general bundle, per-dataset archives in
// ascending size order, checksums, manifest, summary, and notification.
package packaging
