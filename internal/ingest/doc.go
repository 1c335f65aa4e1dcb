// Package ingest provides bulk ingestion of catalog files.
//
// A batch is one file of one catalog kind. [Service.Ingest] reads it,
// turns each row into a typed record, checks it and saves what survives.
// A bad row never stops the batch; it is reported and the next row runs.
//
// # Pipeline
//
// Each batch runs these stages in order:
//
//  1. Batch checks: size limit, empty input, file extension, readable
//     content, at least one data row. Failing any of them ends the batch
//     with a single error.
//  2. Parse: every row is read through [Row], so one [Parser] per kind
//     serves CSV, spreadsheet and JSON input alike.
//  3. Validate: built records are checked with struct tags.
//  4. Duplicates: keys repeated within the file are rejected first, then
//     keys already in the store.
//  5. Save and link: survivors are saved one at a time. Kinds that
//     reference another catalog are linked right after their save.
//  6. Report: diagnostics are collected into a [BatchResult].
//
// Rejected rows are appended to the error ledger when one is configured.
//
// # Links
//
// Uploads link to content by content_link, and media link to uploads by
// link. A missing counterpart is created with a type taken from a
// [TypeMap]:
//
//	maps, err := ingest.LoadLinkMaps("linkmap.yaml")
//	svc := ingest.NewService(stores, ingest.Config{LinkMaps: &maps})
//
// # Concurrency
//
// Batches may run in parallel up to the [Limiter] bound. Two batches that
// insert the same key race between the store check and the save; the
// store's own uniqueness check rejects the loser row by row.
package ingest
