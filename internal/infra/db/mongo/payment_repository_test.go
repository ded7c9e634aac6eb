package mongo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/mongo"
)

// A stale-version save misses the filter and retries as an insert, so its
// duplicate key lands on _id. That must read as a lost version race, not as
// a reused provider reference.
func TestClassifyDuplicateKey(t *testing.T) {
	t.Run("duplicate _id is a concurrent update", func(t *testing.T) {
		err := mongo.WriteException{WriteErrors: mongo.WriteErrors{{
			Code:    11000,
			Message: `E11000 duplicate key error collection: wheelshare.agg_payment index: _id_ dup key: { _id: "pay-1" }`,
		}}}
		assert.ErrorIs(t, classifyDuplicateKey(err), ErrConcurrentUpdate)
	})

	t.Run("duplicate provider reference keeps its meaning", func(t *testing.T) {
		err := mongo.WriteException{WriteErrors: mongo.WriteErrors{{
			Code:    11000,
			Message: `E11000 duplicate key error collection: wheelshare.agg_payment index: provider_reference_1 dup key: { provider_reference: "pf-1" }`,
		}}}
		assert.ErrorIs(t, classifyDuplicateKey(err), ErrDuplicateReference)
	})
}
