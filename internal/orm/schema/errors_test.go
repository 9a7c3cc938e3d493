package schema

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorHelpers(t *testing.T) {
	incomplete := fmt.Errorf("decode: %w", &IncompleteKeyError{Model: "Dummy", Missing: []string{"key"}})
	mismatched := fmt.Errorf("decode: %w", mismatch("start_date", TypeTimestamp, "yesterday"))
	unresolved := fmt.Errorf("resolve: %w", ErrUnresolvedModel)

	assert.True(t, IsIncompleteKey(incomplete))
	assert.False(t, IsIncompleteKey(mismatched))

	assert.True(t, IsTypeMismatch(mismatched))
	assert.False(t, IsTypeMismatch(unresolved))

	assert.True(t, IsUnresolved(unresolved))
	assert.False(t, IsUnresolved(errors.New("other")))

	assert.EqualError(t, incomplete, "decode: incomplete key for Dummy: missing key")
}
