// Package sqlite persists evaluation runs in the results database managed
// by package db: one row per run, its per-mode and per-label scores, and
// the pass/fail verdict of every frame.
package sqlite
