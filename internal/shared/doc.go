// Package shared contains the error taxonomy used across the storage layer.
//
// # Error Kinds
//
// Every failure the storage layer surfaces is classified into one Kind:
//
//	Kind         | Meaning                                  | Caller policy
//	-------------|------------------------------------------|-------------------------------
//	Constraint   | unique/foreign-key/not-null violation    | surface, never retry
//	Busy         | engine-level lock contention             | bounded retry with backoff
//	Corrupt      | malformed database image                 | fatal
//	IO           | disk, permission or read-only failure    | fatal
//	Unavailable  | write executor closed or saturated       | surface immediately
//	Invalid      | bad SQL, arguments or API misuse         | surface
//	Canceled     | context cancellation                     | surface
//	Timeout      | deadline exceeded                        | surface
//
// Classify with KindOf or the predicates:
//
//	switch shared.KindOf(err) {
//	case shared.KindBusy:
//	    // retry later
//	case shared.KindConstraint:
//	    // report to the user
//	}
//
// The storage package's StorageError matches the sentinel of its kind, so
// errors.Is(err, shared.ErrConstraint) works on translated driver errors.
//
// # Error Marking
//
// Classify errors coming from elsewhere while preserving the original:
//
//	if errors.Is(err, sql.ErrNoRows) {
//	    return shared.MarkKind(err, shared.KindNotFound)
//	}
//
// Keep messages lowercase and without punctuation so they compose when wrapped.
package shared
