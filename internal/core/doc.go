// Package core provides the business logic for the customs enrichment pipeline.
//
// The pipeline keeps a report of declaration-code frequencies enriched with a
// commodity category taken from a periodically republished classification
// table. It is independent of any transport or storage technology: the
// freshness check, the archive download, and the stores are injected through
// small interfaces ([Prober], [Ingestor], [ReportSink], [WatermarkStore]).
//
// # Run
//
// A [Pipeline.Run] executes these steps:
//
//  1. Read the stored watermark (last ingested publication date).
//  2. Probe the publication page. If the published date is not after the
//     watermark, the run ends with [OutcomeSkipped].
//  3. Download and normalize the archive, then index its terminal rows
//     ([BuildClassificationIndex]). Concurrently, count declaration codes in
//     the log ([BuildOccurrenceIndex]).
//  4. Join the two ([BuildReport]) and serialize the report ([WriteReport]).
//  5. Load the report into the sink.
//  6. Advance the watermark ([WatermarkCommitter]).
//
// # Join Rule
//
// A declaration code is truncated to [CategoryCodeWidth] characters and looked
// up in the classification index. A miss yields the fallback category rather
// than an error. The report is driven by the log: classification codes absent
// from the log never appear.
//
// # Error Handling
//
// Every failure is fatal to the run and is returned as a [*StepError] naming
// the step and one of the error kinds ([ErrSourceUnavailable], [ErrFetch],
// [ErrExtraction], [ErrParse], [ErrLoad]). [MapError] converts errors to
// operator-facing messages with support codes.
package core
