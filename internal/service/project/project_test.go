package project

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internaldb "aida/internal/db"
	"aida/internal/db/repository"
	"aida/internal/domain"
	"aida/internal/service/auditutil"
	"aida/internal/service/security"
	"aida/internal/testutil"
)

func asPrincipal(id string) context.Context {
	return domain.WithPrincipal(context.Background(), domain.Principal{ID: id})
}

func setup(t *testing.T) (*Service, *testutil.MockAuditRepo) {
	t.Helper()
	pools := internaldb.OpenTestPools(t)
	repo := repository.NewProjectRepo(pools.Write)
	audit := &testutil.MockAuditRepo{}
	recorder := auditutil.NewRecorder(audit, testutil.DiscardLogger())
	return NewService(repo, security.NewOwnershipGate(repo, recorder), recorder), audit
}

func TestService_Create(t *testing.T) {
	svc, audit := setup(t)

	t.Run("trims_and_owns", func(t *testing.T) {
		p, err := svc.Create(asPrincipal("u1"), domain.CreateProjectRequest{Name: "  Sales  ", Description: "q3"})
		require.NoError(t, err)
		assert.Equal(t, "Sales", p.Name)
		assert.Equal(t, "u1", p.Owner)
		assert.Nil(t, p.LastOpened)
		assert.True(t, audit.HasEntry("CREATE_PROJECT", domain.AuditAllowed))
	})

	t.Run("blank_name", func(t *testing.T) {
		_, err := svc.Create(asPrincipal("u1"), domain.CreateProjectRequest{Name: "   "})
		assert.Equal(t, domain.KindValidationFailed, domain.KindOf(err))
	})

	t.Run("anonymous", func(t *testing.T) {
		_, err := svc.Create(context.Background(), domain.CreateProjectRequest{Name: "x"})
		assert.Equal(t, domain.KindUnauthenticated, domain.KindOf(err))
	})
}

func TestService_GetTouchesLastOpened(t *testing.T) {
	svc, _ := setup(t)
	opened := time.Date(2026, 5, 4, 3, 2, 1, 0, time.UTC)
	svc.now = func() time.Time { return opened }

	p, err := svc.Create(asPrincipal("u1"), domain.CreateProjectRequest{Name: "Sales"})
	require.NoError(t, err)

	got, err := svc.Get(asPrincipal("u1"), p.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastOpened)
	assert.True(t, opened.Equal(*got.LastOpened))

	list, _, err := svc.ListMine(asPrincipal("u1"), domain.PageRequest{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.NotNil(t, list[0].LastOpened)
	assert.True(t, opened.Equal(*list[0].LastOpened))

	_, err = svc.Get(asPrincipal("u2"), p.ID)
	assert.Equal(t, domain.KindForbidden, domain.KindOf(err))
}

func TestService_ListMine(t *testing.T) {
	svc, _ := setup(t)
	for _, name := range []string{"a", "b"} {
		_, err := svc.Create(asPrincipal("u1"), domain.CreateProjectRequest{Name: name})
		require.NoError(t, err)
	}
	_, err := svc.Create(asPrincipal("u2"), domain.CreateProjectRequest{Name: "c"})
	require.NoError(t, err)

	list, total, err := svc.ListMine(asPrincipal("u1"), domain.PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, list, 2)
}
