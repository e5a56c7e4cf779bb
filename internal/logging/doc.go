// Package logging assembles the structured slog loggers used across r2rpack.
//
// It owns the console and JSON handlers, level and output plumbing, and the
// shared attribute keys so every component emits records with the same shape.
// Prefer these constructors over hand-rolled slog setup.
package logging
