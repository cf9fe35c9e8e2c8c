package local

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smugsync/internal/fs"
	"smugsync/internal/ignore"
)

func childNames(n *fs.Node) []string {
	var out []string
	for _, c := range n.Children {
		out = append(out, c.Name)
	}
	return out
}

func TestScanner_AlbumAndFolderClassification(t *testing.T) {
	afs := afero.NewMemMapFs()
	writeFiles(t, afs, map[string][]byte{
		"/data/root/A/img1.jpg":         []byte("x"),
		"/data/root/A/img2.jpg":         []byte("x"),
		"/data/root/dir/SmugCLI_1.jpg":  []byte("x"),
		"/data/root/dir/album/img4.jpg": []byte("x"),
		"/data/root/dir/notes.txt":      []byte("plain text"),
		"/data/root/empty/.keep.txt":    []byte("plain text"),
		"/data/root/nothing/sub/a.jpg":  []byte("x"),
	})
	require.NoError(t, afs.MkdirAll("/data/root/really-empty", 0o755))

	s := NewScanner(afs, nil, fs.PrivacyUnlisted)
	top, err := s.Scan([]string{"/data/root"})
	require.NoError(t, err)
	assert.Equal(t, fs.KindFolder, top.Kind)
	require.Len(t, top.Children, 1)

	root := top.Children[0]
	assert.Equal(t, "root", root.Name)
	assert.Equal(t, fs.KindFolder, root.Kind)
	assert.Equal(t, []string{"A", "dir", "empty", "nothing"}, childNames(root))

	a := root.Child("A")
	assert.Equal(t, fs.KindAlbum, a.Kind)
	assert.Equal(t, fs.PrivacyUnlisted, a.Privacy)
	assert.Equal(t, []string{"img1.jpg", "img2.jpg"}, childNames(a))
	assert.Equal(t, "root/A/img1.jpg", a.Child("img1.jpg").Path)

	dir := root.Child("dir")
	assert.Equal(t, fs.KindFolder, dir.Kind)
	assert.Equal(t, []string{"Images from folder dir", "album", "notes.txt"}, childNames(dir))
	loose := dir.Child("Images from folder dir")
	assert.Equal(t, fs.KindAlbum, loose.Kind)
	assert.Equal(t, "root/dir/Images from folder dir/SmugCLI_1.jpg", loose.Child("SmugCLI_1.jpg").Path)
	assert.Equal(t, fs.ReasonUnsupportedType, dir.Child("notes.txt").Rejected)

	assert.Equal(t, fs.ReasonNoMedia, root.Child("empty").Rejected)
	assert.Equal(t, fs.KindFolder, root.Child("nothing").Kind)
	assert.Nil(t, root.Child("really-empty"))
}

func TestScanner_FileSources(t *testing.T) {
	afs := afero.NewMemMapFs()
	writeFiles(t, afs, map[string][]byte{
		"/dir1/SmugCLI_1.jpg": []byte("x"),
		"/dir1/SmugCLI_2.jpg": []byte("xy"),
	})

	top, err := NewScanner(afs, nil, fs.PrivacyPublic).Scan([]string{"/dir1/SmugCLI_2.jpg", "/dir1/SmugCLI_1.jpg"})
	require.NoError(t, err)
	assert.Equal(t, fs.KindAlbum, top.Kind)
	assert.Equal(t, []string{"SmugCLI_1.jpg", "SmugCLI_2.jpg"}, childNames(top))
	assert.Equal(t, int64(2), top.Child("SmugCLI_2.jpg").Size)
}

func TestScanner_IgnoredContentsNeverAppear(t *testing.T) {
	afs := afero.NewMemMapFs()
	writeFiles(t, afs, map[string][]byte{
		"/root/A/img1.jpg": []byte("x"),
		"/root/A/img2.jpg": []byte("x"),
	})
	m := ignore.New([]ignore.Rule{
		{Pattern: "root/A/*"},
		{Pattern: "root/A/img2.jpg", Include: true},
	})

	top, err := NewScanner(afs, m, fs.PrivacyPublic).Scan([]string{"/root"})
	require.NoError(t, err)
	a := top.Child("root").Child("A")
	require.NotNil(t, a)
	assert.Equal(t, []string{"img2.jpg"}, childNames(a))
}

func TestScanner_Errors(t *testing.T) {
	afs := afero.NewMemMapFs()
	writeFiles(t, afs, map[string][]byte{
		"/a/x/img.jpg": []byte("x"),
		"/b/x/img.jpg": []byte("x"),
	})
	s := NewScanner(afs, nil, fs.PrivacyPublic)

	_, err := s.Scan([]string{"/missing"})
	assert.ErrorContains(t, err, "invalid source")

	_, err = s.Scan([]string{"/a/x", "/b/x"})
	assert.ErrorContains(t, err, "same name")
}

func TestScanner_LooseImagesAlbumNameTaken(t *testing.T) {
	afs := afero.NewMemMapFs()
	writeFiles(t, afs, map[string][]byte{
		// 已有同名相册: 合并
		"/src/P/loose.jpg":                  []byte("x"),
		"/src/P/Images from folder P/a.jpg": []byte("x"),
		"/src/P/sub/b.jpg":                  []byte("x"),
		// 同名子目录是文件夹: 散落图片被拒绝
		"/src/R/loose.jpg":                    []byte("x"),
		"/src/R/Images from folder R/x/c.jpg": []byte("x"),
		// 相册内已有同名图片
		"/src/S/a.jpg":                      []byte("x"),
		"/src/S/b.jpg":                      []byte("x"),
		"/src/S/Images from folder S/a.jpg": []byte("x"),
		"/src/S/sub/d.jpg":                  []byte("x"),
	})

	top, err := NewScanner(afs, nil, fs.PrivacyPublic).Scan([]string{"/src/P", "/src/R", "/src/S"})
	require.NoError(t, err)

	p := top.Child("P")
	assert.Equal(t, []string{"Images from folder P", "sub"}, childNames(p))
	merged := p.Child("Images from folder P")
	assert.Equal(t, fs.KindAlbum, merged.Kind)
	assert.Equal(t, []string{"a.jpg", "loose.jpg"}, childNames(merged))
	assert.Equal(t, "P/Images from folder P/loose.jpg", merged.Child("loose.jpg").Path)
	assert.Equal(t, "/src/P/loose.jpg", merged.Child("loose.jpg").LocalPath)

	r := top.Child("R")
	assert.Equal(t, []string{"Images from folder R", "loose.jpg"}, childNames(r))
	assert.Equal(t, fs.KindFolder, r.Child("Images from folder R").Kind)
	assert.Equal(t, fs.ReasonNameConflict, r.Child("loose.jpg").Rejected)
	assert.Equal(t, "R/loose.jpg", r.Child("loose.jpg").Path)

	sdir := top.Child("S")
	assert.Equal(t, []string{"Images from folder S", "a.jpg", "sub"}, childNames(sdir))
	assert.Equal(t, []string{"a.jpg", "b.jpg"}, childNames(sdir.Child("Images from folder S")))
	assert.Equal(t, fs.ReasonNameConflict, sdir.Child("a.jpg").Rejected)
}
