package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashKey(t *testing.T) {
	a := HashKey([]byte("pepper"), "secret")
	b := HashKey([]byte("pepper"), "secret")
	c := HashKey([]byte("other"), "secret")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}

func TestIdentity_HasRole(t *testing.T) {
	tests := []struct {
		name  string
		id    Identity
		roles []Role
		want  bool
	}{
		{name: "admin in list", id: Identity{Role: RoleAdmin}, roles: []Role{RoleAdmin, RoleSeller}, want: true},
		{name: "customer not in list", id: Identity{Role: RoleCustomer}, roles: []Role{RoleAdmin}, want: false},
		{name: "any authenticated", id: Identity{Role: RoleCustomer}, want: true},
		{name: "unknown role", id: Identity{Role: "guest"}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.id.HasRole(tt.roles...))
		})
	}
}

func TestIdentity_Privileged(t *testing.T) {
	assert.True(t, Identity{Role: RoleAdmin}.Privileged())
	assert.True(t, Identity{Role: RoleSeller}.Privileged())
	assert.False(t, Identity{Role: RoleCustomer}.Privileged())
}

func TestContextRoundTrip(t *testing.T) {
	_, ok := FromContext(context.Background())
	require.False(t, ok)

	want := Identity{KeyID: "k1", UserID: "u1", Role: RoleSeller}
	got, ok := FromContext(WithIdentity(context.Background(), want))
	require.True(t, ok)
	assert.Equal(t, want, got)
}
