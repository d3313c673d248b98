package doc

import (
	"context"
	"math/rand"
	"strconv"

	"github.com/docsmith/docsmith/pkg/logger"
	"github.com/docsmith/docsmith/pkg/metrics"
)

var retryLog = logger.For("retry")

// maxUniqueAttempts bounds the uniqueness retry loop. With the built-in
// digit-append corrector the chance of 20 consecutive collisions is
// negligible; exhaustion almost always means a unique field no handler
// corrects.
const maxUniqueAttempts = 20

// retryUntilUnique runs attempt, and on a unique-constraint violation emits
// FixUniqueError (letting handlers mutate the document's unique fields) and
// tries again, up to maxUniqueAttempts. On exhaustion the first-seen
// violation is returned, not the last: the first error names the field that
// actually collided, before correctors started mangling it. Any
// non-uniqueness failure propagates immediately.
func (e *Engine) retryUntilUnique(ctx context.Context, m Manager, d Document, opts Options, attempt func() error) error {
	var first error
	for i := 0; i < maxUniqueAttempts; i++ {
		err := attempt()
		if err == nil {
			return nil
		}
		if !IsUniqueViolation(err) {
			return err
		}
		if first == nil {
			first = err
		}
		metrics.UniqueRetries.WithLabelValues(d.Type()).Inc()
		retryLog.Debugf("unique violation on %s (attempt %d/%d): %v", d.ID(), i+1, maxUniqueAttempts, err)
		if i == maxUniqueAttempts-1 {
			break
		}
		if err := emit(ctx, m, FixUniqueError, d, opts); err != nil {
			return err
		}
	}
	return wrap(KindConflict, first,
		"unique constraint still violated after "+strconv.Itoa(maxUniqueAttempts)+
			" attempts; a fixUniqueError handler for the conflicting field is likely required")
}

// deduplicateSlug is the built-in FixUniqueError corrector: it appends a
// random digit to the slug, the field responsible for nearly every unique
// conflict at this layer.
func deduplicateSlug(ctx context.Context, d Document, opts Options) error {
	d[FieldSlug] = d.Slug() + strconv.Itoa(rand.Intn(10))
	return nil
}
