package identity

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDirectory struct {
	roles map[string]bool
	err   error
}

func (d *fakeDirectory) RoleExists(ctx context.Context, name string) (bool, error) {
	if d.err != nil {
		return false, d.err
	}
	return d.roles[name], nil
}

func TestResolveDefaultPermission(t *testing.T) {
	ident, err := Resolve(context.Background(), &fakeDirectory{}, "", "")
	require.NoError(t, err)
	assert.True(t, ident.Has(AnyUser))
	assert.False(t, ident.Has(SystemProcess))
}

func TestResolveSystemProcessWithRole(t *testing.T) {
	dir := &fakeDirectory{roles: map[string]bool{"admin": true}}

	ident, err := Resolve(context.Background(), dir, SystemProcess, "admin")
	require.NoError(t, err)
	assert.True(t, ident.Has(SystemProcess))
	assert.True(t, ident.HasRole("admin"))
	assert.False(t, ident.HasRole("curator"))
}

func TestResolveUnknownRole(t *testing.T) {
	dir := &fakeDirectory{roles: map[string]bool{}}

	_, err := Resolve(context.Background(), dir, SystemProcess, "nobody")
	var notFound *RoleNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "nobody", notFound.Role)
	assert.Contains(t, err.Error(), "nobody")
}

func TestResolveDirectoryFailurePropagates(t *testing.T) {
	boom := errors.New("directory unavailable")
	dir := &fakeDirectory{err: boom}

	_, err := Resolve(context.Background(), dir, AnyUser, "admin")
	require.ErrorIs(t, err, boom)
}

func TestAnyCaller(t *testing.T) {
	ident := AnyCaller()
	assert.True(t, ident.Has(AnyUser))
	assert.False(t, ident.Has(SystemProcess))
}
