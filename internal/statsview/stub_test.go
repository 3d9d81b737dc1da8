//go:build !statsview

package statsview

import (
	"testing"

	"github.com/retroenv/retrogolib/assert"
)

func TestStubUnavailable(t *testing.T) {
	assert.False(t, Available())
	Launch()
}
