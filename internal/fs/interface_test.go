package fs

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPathHelpers(t *testing.T) {
	assert.Equal(t, "/", CleanPath(""))
	assert.Equal(t, "/a/b", CleanPath("a/b/"))
	assert.Equal(t, "/a/b", CleanPath(`\a\b`))
	assert.Equal(t, "/a", JoinPath("/", "a"))
	assert.Equal(t, "/a/b", JoinPath("/a", "b"))

	assert.Equal(t, 0, Depth("/"))
	assert.Equal(t, 1, Depth("/a"))
	assert.Equal(t, 3, Depth("/a/b/c"))

	assert.True(t, IsAncestor("/", "/a"))
	assert.True(t, IsAncestor("/a", "/a/b/c"))
	assert.False(t, IsAncestor("/a", "/a"))
	assert.False(t, IsAncestor("/a", "/ab"))
	assert.False(t, IsAncestor("/a/b", "/a"))
}

func TestParsePrivacy(t *testing.T) {
	for in, want := range map[string]Privacy{
		"":         PrivacyPublic,
		"public":   PrivacyPublic,
		"Unlisted": PrivacyUnlisted,
		"PRIVATE":  PrivacyPrivate,
	} {
		got, err := ParsePrivacy(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParsePrivacy("secret")
	assert.Error(t, err)
	assert.Equal(t, "Unlisted", PrivacyUnlisted.String())
}

func TestClassify(t *testing.T) {
	assert.Equal(t, ErrorNone, Classify(nil))
	assert.Equal(t, ErrorNetwork, Classify(NetworkError(errors.New("reset"))))
	assert.Equal(t, ErrorAuth, Classify(fmt.Errorf("list: %w", ErrAuth)))
	assert.Equal(t, ErrorConflict, Classify(fmt.Errorf("create: %w", ErrConflict)))
	assert.Equal(t, ErrorLocalIO, Classify(&LocalIOError{Path: "a", Err: errors.New("denied")}))
	assert.Equal(t, ErrorCancelled, Classify(context.Canceled))
	assert.Equal(t, ErrorCancelled, Classify(fmt.Errorf("list /A: %w", context.DeadlineExceeded)))
	assert.Equal(t, ErrorNetwork, Classify(NetworkError(context.DeadlineExceeded)))
	assert.Equal(t, ErrorOther, Classify(errors.New("bad request")))
	assert.Equal(t, "NetworkError", ErrorNetwork.String())
}

func TestNodeChild(t *testing.T) {
	n := &Node{Name: "A", Kind: KindAlbum, Children: []*Node{
		{Name: "img1.jpg", Kind: KindImage},
		{Name: "img2.jpg", Kind: KindImage, Rejected: ReasonUnsupportedType},
	}}
	require.NotNil(t, n.Child("img1.jpg"))
	assert.Nil(t, n.Child("IMG1.jpg"))
	assert.True(t, n.Child("img1.jpg").Syncable())
	assert.False(t, n.Child("img2.jpg").Syncable())
	assert.True(t, KindAlbum.IsContainer())
	assert.False(t, KindImage.IsContainer())
}
