package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smugsync/internal/fs"
)

func TestServiceHierarchy(t *testing.T) {
	s := New()
	ctx := context.Background()

	root, err := s.Root(ctx)
	require.NoError(t, err)

	f, err := s.CreateContainer(ctx, root, "Trips", fs.KindFolder, fs.PrivacyPrivate)
	require.NoError(t, err)
	assert.Equal(t, "/Trips", f.Path)
	assert.Equal(t, fs.PrivacyPrivate, f.Privacy)

	a, err := s.CreateContainer(ctx, f, "Paris", fs.KindAlbum, fs.PrivacyPublic)
	require.NoError(t, err)

	img, err := s.UploadImage(ctx, a, "/photos/p1.jpg")
	require.NoError(t, err)
	assert.Equal(t, "/Trips/Paris/p1.jpg", img.Path)

	kids, err := s.FetchChildren(ctx, f)
	require.NoError(t, err)
	require.Len(t, kids, 1)
	assert.Equal(t, "Paris", kids[0].Name)

	assert.Equal(t, []string{"/Trips", "/Trips/Paris", "/Trips/Paris/p1.jpg"}, s.Paths())
	assert.Equal(t, 1, s.CountCalls(OpUpload))
}

func TestServiceRules(t *testing.T) {
	s := New()
	ctx := context.Background()
	root, _ := s.Root(ctx)
	a := s.MustAdd("/A", fs.KindAlbum)
	f := s.MustAdd("/F", fs.KindFolder)

	_, err := s.CreateContainer(ctx, root, "A", fs.KindAlbum, fs.PrivacyPublic)
	assert.ErrorIs(t, err, fs.ErrConflict)

	_, err = s.CreateContainer(ctx, a, "sub", fs.KindFolder, fs.PrivacyPublic)
	assert.Error(t, err)

	_, err = s.UploadImage(ctx, f, "/x.jpg")
	assert.Error(t, err)

	_, err = s.FetchChildren(ctx, &fs.Node{Path: "/A", RemoteID: "stale"})
	assert.Error(t, err)
}

func TestServiceFaults(t *testing.T) {
	s := New()
	ctx := context.Background()
	s.InjectFault(func(op Op, p string) error {
		if op == OpCreate {
			return fs.NetworkError(errors.New("reset"))
		}
		return nil
	})
	root, err := s.Root(ctx)
	require.NoError(t, err)

	_, err = s.CreateContainer(ctx, root, "A", fs.KindAlbum, fs.PrivacyPublic)
	assert.ErrorIs(t, err, fs.ErrNetwork)
	assert.Nil(t, s.Lookup("/A"))
	assert.Equal(t, []Call{{OpRoot, "/"}, {OpCreate, "/A"}}, s.Calls())
}
