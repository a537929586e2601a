// Package core holds the claims domain: the claim, detail, note and user
// types, the import pipeline, and the Service that web handlers and CLI
// commands call. It has no knowledge of HTTP or of a particular database.
//
// # Import Pipeline
//
// An import reads two files, claims and details, each JSON or CSV:
//
//	report, err := svc.Import(ctx, core.ImportRequest{
//	    Claims:  core.Source{Name: "claims.csv", Reader: claimsFile},
//	    Details: core.Source{Name: "details.json", Reader: detailsFile},
//	    Mode:    core.ModeOverwrite,
//	    Policy:  core.PolicyAtomic,
//	})
//
// [Records] turns a file into a lazy sequence of untyped records.
// [ClaimRecords] and [DetailRecords] validate those records field by field.
// The claim reconciler upserts claims, then the detail linker attaches
// details to claims that exist, in one transaction. Under the atomic policy
// the first bad record rolls everything back; under best-effort it is
// recorded in the [ImportReport] and skipped.
//
// # Storage
//
// The [Store] interface is implemented by internal/store/gormstore (SQLite
// and MySQL) and internal/store/pgstore (PostgreSQL).
//
// # Errors
//
// Errors returned from this package wrap sentinels such as [ErrNotFound]
// and [ErrImportBusy], or are typed as [*FormatError] and [ValidationError].
// [MapError] turns any of them into a message safe to show to users.
package core
