package content_test

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"folio.dev/internal/auth"
	"folio.dev/internal/content"
)

func ids(items []*content.Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func TestListDefaultsToNewestFirst(t *testing.T) {
	f := newFixture(t)
	page, err := f.svc.List(context.Background(), f.admin, content.ListQuery{})
	require.NoError(t, err)
	assert.Equal(t, 7, page.Total)
	assert.Equal(t, content.DefaultPageSize, page.PageSize)
	// 3 and 7 share updatedAt=now; stable order keeps id order
	assert.Equal(t, []string{"3", "7", "5", "6", "2", "4", "1"}, ids(page.Items))
}

func TestListFiltersAndSorts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	page, err := f.svc.List(ctx, f.admin, content.ListQuery{Search: "ANGULAR"})
	require.NoError(t, err)
	assert.Equal(t, []string{"2"}, ids(page.Items))

	page, err = f.svc.List(ctx, f.admin, content.ListQuery{Status: content.StatusReview, Sort: content.SortTitle})
	require.NoError(t, err)
	assert.Equal(t, []string{"2", "6"}, ids(page.Items))

	page, err = f.svc.List(ctx, f.admin, content.ListQuery{Sort: content.SortAuthorEmail, Desc: true, PageSize: 2, Page: 1})
	require.NoError(t, err)
	assert.Equal(t, "emily@test.com", page.Items[0].AuthorEmail)
	assert.Equal(t, 4, page.TotalPages)

	_, err = f.svc.List(ctx, f.admin, content.ListQuery{Sort: "body"})
	assert.ErrorIs(t, err, content.ErrInvalidInput)
}

func TestListVisibilityAndTrash(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	page, err := f.svc.List(ctx, f.author, content.ListQuery{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"2", "4"}, ids(page.Items))

	_, err = f.svc.List(ctx, f.author, content.ListQuery{Status: content.StatusTrash})
	assert.ErrorIs(t, err, auth.ErrForbidden)

	_, err = f.svc.SoftDelete(ctx, f.author, "4")
	require.NoError(t, err)

	page, err = f.svc.List(ctx, f.author, content.ListQuery{})
	require.NoError(t, err)
	assert.Equal(t, []string{"2"}, ids(page.Items))

	trash, err := f.svc.List(ctx, f.admin, content.ListQuery{Status: content.StatusTrash})
	require.NoError(t, err)
	assert.Equal(t, []string{"4"}, ids(trash.Items))

	live, err := f.svc.List(ctx, f.admin, content.ListQuery{})
	require.NoError(t, err)
	assert.NotContains(t, ids(live.Items), "4")
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	st, err := f.svc.Stats(ctx, f.admin)
	require.NoError(t, err)
	assert.Equal(t, 7, st.Total)
	assert.Equal(t, 1, st.Published)
	assert.Equal(t, 2, st.Review)
	assert.Equal(t, 2, st.Drafts)
	require.Len(t, st.ByAuthor, 3)
	assert.Equal(t, content.AuthorCount{AuthorEmail: "admin@test.com", Count: 4}, st.ByAuthor[0])
	assert.Equal(t, content.AuthorCount{AuthorEmail: "author@test.com", Count: 2}, st.ByAuthor[1])

	st, err = f.svc.Stats(ctx, f.emily)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Total)
	assert.Equal(t, 1, st.Drafts)
	assert.Nil(t, st.ByAuthor)
}

func TestExport(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.svc.SoftDelete(ctx, f.admin, "7")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, f.svc.Export(ctx, f.admin, &buf))
	assert.True(t, strings.HasPrefix(buf.String(), "[\n  {\n    \"id\": \"1\""))

	var items []content.Item
	require.NoError(t, json.Unmarshal(buf.Bytes(), &items))
	require.Len(t, items, 6)
	assert.Equal(t, "6", items[5].ID)

	buf.Reset()
	require.NoError(t, f.svc.Export(ctx, f.author, &buf))
	require.NoError(t, json.Unmarshal(buf.Bytes(), &items))
	assert.Len(t, items, 2)
}
