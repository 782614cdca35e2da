package core

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

type plainOwner struct{}

func (plainOwner) Dispatcher() Dispatcher { return nil }

type pointerOwner struct{ id int }

func (*pointerOwner) Dispatcher() Dispatcher { return nil }

// TestOwnerName verifies the label used in logs and metrics
// Given: Named, pointer and value owners
// When: ownerName renders them
// Then: Names win, pointers carry their address, values only their type
func TestOwnerName(t *testing.T) {
	p := &pointerOwner{}

	assert.Equal(t, "window-1", ownerName(&testOwner{name: "window-1"}))
	assert.Equal(t, fmt.Sprintf("*core.pointerOwner@%p", p), ownerName(p))
	assert.Equal(t, "core.plainOwner", ownerName(plainOwner{}))
	assert.Equal(t, "struct { core.Owner }", ownerName(struct{ Owner }{plainOwner{}}))
}
