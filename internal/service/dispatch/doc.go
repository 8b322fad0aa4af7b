// Package dispatch implements the lead dispatch pipeline.
//
// A run takes one snapshot of the lead table, resolves the phone and status
// columns, selects the rows whose status reads "new" and walks them strictly
// in table order: validate the phone, send the message, write the outcome
// back to the status cell, then wait a random pause before the next row.
//
// Rows are never processed concurrently. The messaging channel and the table
// are single-writer resources from this process's point of view.
//
// Only configuration and connection failures escape Run. Everything that goes
// wrong for a single row is recorded in the status column and the summary.
package dispatch
