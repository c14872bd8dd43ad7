package content

import (
	"encoding/json"
	"net/url"
	"testing"

	"github.com/brizzai/blogctl/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSlug(t *testing.T) {
	tests := map[string]string{
		"Hello World":             "hello-world",
		"  Leading and trailing ": "leading-and-trailing",
		"Crème Brûlée":            "creme-brulee",
		"Go 1.24 -- what's new?":  "go-1-24-what-s-new",
		"___":                     "",
		"Already-a-slug":          "already-a-slug",
	}
	for title, want := range tests {
		assert.Equal(t, want, GenerateSlug(title), title)
	}
}

func TestBuildQuery(t *testing.T) {
	tests := []struct {
		name    string
		queries []Query
		want    url.Values
	}{
		{name: "Empty", want: url.Values{}},
		{
			name:    "Equal And NotEqual",
			queries: []Query{Equal("status", "active"), NotEqual("slug", "draft-1")},
			want:    url.Values{"status": {"active"}, "slug__ne": {"draft-1"}},
		},
		{
			name:    "Raw",
			queries: []Query{Raw("status=draft"), Raw("broken"), Raw("=x"), Raw("k=")},
			want:    url.Values{"status": {"draft"}},
		},
		{
			name:    "Ignored",
			queries: []Query{Limit(10), OrderAsc("title"), Search("title", "go")},
			want:    url.Values{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, buildQuery(tt.queries))
		})
	}
}

func TestFileIDFrom(t *testing.T) {
	const id = "4b4e6a1c-6f0e-4c1c-9d55-2d0f3a1b7e11"
	tests := []struct {
		ref    string
		want   string
		wantOK bool
	}{
		{ref: id, want: id, wantOK: true},
		{ref: "http://host/media/uploads/" + id + ".png", want: id, wantOK: true},
		{ref: "/media/uploads/" + id + "/", want: id, wantOK: true},
		{ref: "http://host/media/posts/images/cover.png"},
		{ref: ""},
	}
	for _, tt := range tests {
		got, ok := fileIDFrom(tt.ref)
		assert.Equal(t, tt.wantOK, ok, tt.ref)
		assert.Equal(t, tt.want, got, tt.ref)
	}
}

func TestDecodePostList(t *testing.T) {
	t.Run("Alternate Keys And Junk Entries", func(t *testing.T) {
		body := []byte(`[
			null,
			"stray",
			{"_id":"p1","title":"One","createdAt":"c1","updatedAt":"u1","user_id":4,"featuredImage":"img"},
			{"$id":"p2","title":"Two","user":9}
		]`)

		list, err := decodePostList(body)
		require.NoError(t, err)
		require.Len(t, list.Documents, 2)
		assert.Equal(t, 2, list.Total)

		assert.Equal(t, Post{ID: "p1", Title: "One", CreatedAt: "c1", UpdatedAt: "u1", UserID: "4", FeaturedImage: "img"}, list.Documents[0])
		assert.Equal(t, Post{ID: "p2", Title: "Two", UserID: "9"}, list.Documents[1])
	})

	t.Run("Nested User", func(t *testing.T) {
		list, err := decodePostList([]byte(`{"results":[{"id":"p1","user":{"id":"u-7","first_name":"Jo"}}]}`))
		require.NoError(t, err)
		require.Len(t, list.Documents, 1)
		assert.Equal(t, session.ID(`"u-7"`), list.Documents[0].UserID)
		assert.Equal(t, "Jo", list.Documents[0].User.Name)
	})

	t.Run("Empty Envelope Is A Single Post", func(t *testing.T) {
		list, err := decodePostList([]byte(`{"id":"p1","title":"Solo"}`))
		require.NoError(t, err)
		require.Len(t, list.Documents, 1)
		assert.Equal(t, "Solo", list.Documents[0].Title)
	})

	t.Run("Invalid", func(t *testing.T) {
		_, err := decodePostList([]byte(`42`))
		assert.Error(t, err)
		_, err = decodePostList(nil)
		assert.Error(t, err)
	})
}

func TestPost_MarshalJSON(t *testing.T) {
	data, err := json.Marshal(Post{ID: "p1", Title: "T", Slug: "t", Status: StatusDraft, UserID: "7", CreatedAt: "c"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"$id":"p1","title":"T","slug":"t","content":"","status":"draft","userId":7,"$createdAt":"c"}`, string(data))
}

func TestStatus_Valid(t *testing.T) {
	assert.True(t, StatusActive.Valid())
	assert.True(t, StatusInactive.Valid())
	assert.True(t, StatusDraft.Valid())
	assert.False(t, Status("published").Valid())
	assert.False(t, Status("").Valid())
}
