// Package rsync provides a wire-compatible re-implementation of the
// librsync binary delta format: given a base buffer and a target buffer, it
// computes a compact delta that reconstructs the target when applied to the
// base. It follows the algorithm described in Andrew Tridgell's thesis
// (https://www.samba.org/~tridge/phd_thesis.pdf) and the rsync technical
// report (https://rsync.samba.org/tech_report), using the same weak/strong
// hash pairing and on-wire command encoding as librsync itself.
//
// The package is a pure, allocation-conscious library: it performs no I/O
// and holds no network or filesystem state. Signature computation is
// provided by Calculate, delta computation by Diff, and delta
// application by Apply / ApplyLimited.
package rsync
