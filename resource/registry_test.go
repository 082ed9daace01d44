package resource

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilyalabun/btm/uid"
)

type stubResource struct {
	name string
}

func (s *stubResource) UniqueName() string                   { return s.name }
func (s *stubResource) Recover(flags int) ([]uid.Xid, error) { return nil, nil }
func (s *stubResource) Commit(xid uid.Xid, onePhase bool) error {
	return nil
}
func (s *stubResource) Rollback(xid uid.Xid) error { return nil }

func TestRegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	res := &stubResource{name: "jdbc/ds1"}

	require.NoError(t, r.Register(res))
	assert.Equal(t, res, r.ByName("jdbc/ds1"))
	assert.Nil(t, r.ByName("jdbc/other"))
}

func TestRegisterDuplicateNameFails(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&stubResource{name: "jdbc/ds1"}))
	assert.Error(t, r.Register(&stubResource{name: "jdbc/ds1"}))
}

func TestRegisterEmptyNameFails(t *testing.T) {
	r := NewRegistry()
	assert.Error(t, r.Register(&stubResource{name: ""}))
}

func TestAllReturnsStableOrder(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&stubResource{name: "b"}))
	require.NoError(t, r.Register(&stubResource{name: "a"}))
	require.NoError(t, r.Register(&stubResource{name: "c"}))

	all := r.All()
	require.Len(t, all, 3)
	assert.Equal(t, "a", all[0].UniqueName())
	assert.Equal(t, "b", all[1].UniqueName())
	assert.Equal(t, "c", all[2].UniqueName())
}

func TestUnregister(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&stubResource{name: "jdbc/ds1"}))
	r.Unregister("jdbc/ds1")
	assert.Nil(t, r.ByName("jdbc/ds1"))
	assert.Empty(t, r.All())
}
