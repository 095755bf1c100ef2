// Package vault implements the encrypted backup and restore pipeline for the
// HR coaching database.
//
// An export serializes every registered table into a canonical snapshot
// document, compresses it, derives a key from the user's password, and seals
// the result into a single tamper-evident artifact file. An import reverses
// the pipeline and repopulates the database inside one transaction. The
// package is built around the following guarantees:
//
// 1. Atomicity: an export never leaves a partial file at the destination, and
// an import either restores everything or leaves the database untouched
// 2. Authenticity: the artifact header and ciphertext are bound by an AEAD
// tag; a wrong password and a tampered file are indistinguishable failures
// 3. Freshness: salt and nonce are generated anew for every export
// 4. Determinism: two exports of an unchanged database produce bit-identical
// plaintext before salt/nonce randomization
// 5. Exclusivity: a process-wide guard rejects overlapping operations
//
// Core components:
//
// - Collector: reads all rows of all registered tables into a SnapshotDocument
// - CompressionManager: pluggable zstd/lz4/gzip compression with stream sniffing
// - KeyDeriver: Argon2id password-to-key derivation with persisted parameters
// - Seal/Open: AES-256-GCM with the artifact header as associated data
// - ArtifactWriter/ArtifactReader: atomic file framing of header + ciphertext
// - RestoreEngine: single-transaction, all-or-nothing repopulation
// - Engine: orchestrates both pipelines and owns the operation guard
//
// Example usage:
//
//	engine := vault.NewEngine(vault.DefaultEngineConfig(), source, target, logger)
//
//	summary, err := engine.Export(ctx, "/backups/monday.hrcb", password)
//	if err != nil {
//		return fmt.Errorf("export failed: %w", err)
//	}
//	fmt.Printf("wrote %d rows from %d tables (%d bytes)\n",
//		summary.RowCount, summary.TableCount, summary.ArtifactSizeBytes)
//
//	restored, err := engine.Import(ctx, "/backups/monday.hrcb", password)
//	if err != nil {
//		return fmt.Errorf("import failed: %w", err)
//	}
//	fmt.Printf("restored %d rows into %d tables\n",
//		restored.RowsRestored, restored.TablesRestored)
package vault
