package repo_test

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voyagesur/backend/internal/domain"
	"github.com/voyagesur/backend/internal/repo"
)

func seedVaccines(t *testing.T, tx pgx.Tx) {
	t.Helper()
	_, err := tx.Exec(context.Background(), `
		INSERT INTO vaccines (id, data) VALUES
		('hep-a', '{"name":"Hepatitis A","mandatory":false}'),
		('yellow-fever', '{"name":"Yellow fever","mandatory":true}')`)
	require.NoError(t, err)
}

func TestReferenceRepo_Get(t *testing.T) {
	tx := newTestTx(t)
	seedVaccines(t, tx)
	r := repo.NewReferenceRepo(tx)

	raw, err := r.Get(context.Background(), domain.CollectionVaccines, "yellow-fever")

	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Yellow fever","mandatory":true}`, string(raw))
}

func TestReferenceRepo_Get_NotFound(t *testing.T) {
	r := repo.NewReferenceRepo(newTestTx(t))

	_, err := r.Get(context.Background(), domain.CollectionVaccines, "smallpox")

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestReferenceRepo_GetMany_SkipsMissing(t *testing.T) {
	tx := newTestTx(t)
	seedVaccines(t, tx)
	r := repo.NewReferenceRepo(tx)

	docs, err := r.GetMany(context.Background(), domain.CollectionVaccines, []string{"hep-a", "smallpox", "yellow-fever"})

	require.NoError(t, err)
	assert.Len(t, docs, 2)
	assert.Contains(t, docs, "hep-a")
	assert.Contains(t, docs, "yellow-fever")
}

func TestReferenceRepo_UnknownCollection(t *testing.T) {
	r := repo.NewReferenceRepo(newTestTx(t))

	_, err := r.GetMany(context.Background(), domain.Collection("airports"), []string{"cdg"})

	assert.ErrorIs(t, err, domain.ErrNotFound)
}
