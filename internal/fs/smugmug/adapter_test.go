package smugmug

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/goccy/go-json"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smugsync/internal/fs"
)

// fakeAPI 模拟 API v2 的一小部分
type fakeAPI struct {
	mu       sync.Mutex
	created  []createNodeRequest
	uploads  map[string]string // file name -> album uri
	statuses map[string]int    // path -> 强制返回的状态码
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !strings.HasPrefix(r.Header.Get("Authorization"), "OAuth ") {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	if code, ok := f.statuses[r.URL.Path]; ok {
		w.WriteHeader(code)
		_, _ = io.WriteString(w, `{"Code":`+strconv.Itoa(code)+`,"Message":"forced"}`)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	switch r.Method + " " + r.URL.Path {
	case "GET /api/v2!authuser":
		_, _ = io.WriteString(w, `{"Response":{"User":{"NickName":"me","Uris":{"Node":{"Uri":"/api/v2/node/root"}}}}}`)
	case "GET /api/v2/user/other":
		_, _ = io.WriteString(w, `{"Response":{"User":{"NickName":"other","Uris":{"Node":{"Uri":"/api/v2/node/oroot"}}}}}`)
	case "GET /api/v2/node/root!children":
		if r.URL.Query().Get("start") == "1" {
			_, _ = io.WriteString(w, `{"Response":{"Node":[
				{"Name":"Trips","Type":"Folder","Privacy":"Unlisted","Uri":"/api/v2/node/f1"},
				{"Name":"About","Type":"Page","Uri":"/api/v2/node/p1"}
			],"Pages":{"Total":3,"Start":1,"Count":2,"NextPage":"/api/v2/node/root!children?start=3&count=100"}}}`)
			return
		}
		// 名字为 NFD 形式
		_, _ = io.WriteString(w, `{"Response":{"Node":[
			{"Name":"Cafe\u0301","Type":"Album","Privacy":"Public","Uri":"/api/v2/node/a1","Uris":{"Album":{"Uri":"/api/v2/album/k1"}}}
		],"Pages":{"Total":3,"Start":3,"Count":1}}}`)
	case "GET /api/v2/album/k1!images":
		_, _ = io.WriteString(w, `{"Response":{"AlbumImage":[
			{"FileName":"x.jpg","ImageKey":"i1","ArchivedSize":42,"Uri":"/api/v2/album/k1/image/i1"}
		],"Pages":{"Total":1,"Start":1,"Count":1}}}`)
	case "GET /api/v2/node/a9":
		_, _ = io.WriteString(w, `{"Response":{"Node":{"Name":"Late","Type":"Album","Uri":"/api/v2/node/a9","Uris":{"Album":{"Uri":"/api/v2/album/k9"}}}}}`)
	case "POST /api/v2/node/root!children":
		var body createNodeRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if body.Name == "Trips" {
			w.WriteHeader(http.StatusConflict)
			_, _ = io.WriteString(w, `{"Code":409,"Message":"Conflict"}`)
			return
		}
		f.created = append(f.created, body)
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"Response":{"Node":{"Name":"`+body.Name+`","Type":"`+body.Type+`","Privacy":"`+body.Privacy+
			`","Uri":"/api/v2/node/n2","Uris":{"Album":{"Uri":"/api/v2/album/k2"}}}}}`)
	case "POST /upload":
		data, _ := io.ReadAll(r.Body)
		sum := md5.Sum(data)
		if r.Header.Get("Content-MD5") != hex.EncodeToString(sum[:]) {
			_, _ = io.WriteString(w, `{"stat":"fail","code":5,"message":"md5 mismatch"}`)
			return
		}
		f.uploads[r.Header.Get("X-Smug-FileName")] = r.Header.Get("X-Smug-AlbumUri")
		_, _ = io.WriteString(w, `{"stat":"ok","Image":{"ImageUri":"/api/v2/image/new"}}`)
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"Code":404,"Message":"Not Found"}`)
	}
}

func (f *fakeAPI) force(p string, code int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[p] = code
}

func (f *fakeAPI) createdNodes() []createNodeRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]createNodeRequest(nil), f.created...)
}

func (f *fakeAPI) uploadedTo(name string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.uploads[name]
}

func newTestService(t *testing.T, user string) (*Service, *fakeAPI, afero.Fs) {
	t.Helper()
	api := &fakeAPI{uploads: make(map[string]string), statuses: make(map[string]int)}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	afs := afero.NewMemMapFs()
	client := NewClient(&Options{
		APIKey:            "key",
		APISecret:         "secret",
		AccessToken:       "tok",
		AccessTokenSecret: "toksecret",
		User:              user,
		BaseURL:           srv.URL,
		UploadURL:         srv.URL + "/upload",
	})
	return NewService(client, afs), api, afs
}

func TestServiceListsTree(t *testing.T) {
	svc, _, _ := newTestService(t, "")
	ctx := context.Background()

	root, err := svc.Root(ctx)
	require.NoError(t, err)
	assert.Equal(t, "/api/v2/node/root", root.RemoteID)
	assert.Equal(t, fs.KindFolder, root.Kind)

	kids, err := svc.FetchChildren(ctx, root)
	require.NoError(t, err)
	require.Len(t, kids, 2)
	assert.Equal(t, "Trips", kids[0].Name)
	assert.Equal(t, fs.KindFolder, kids[0].Kind)
	assert.Equal(t, fs.PrivacyUnlisted, kids[0].Privacy)
	assert.Equal(t, "Caf\u00e9", kids[1].Name)
	assert.Equal(t, fs.KindAlbum, kids[1].Kind)

	images, err := svc.FetchChildren(ctx, kids[1])
	require.NoError(t, err)
	require.Len(t, images, 1)
	assert.Equal(t, "x.jpg", images[0].Name)
	assert.Equal(t, int64(42), images[0].Size)
	assert.Equal(t, fs.KindImage, images[0].Kind)
}

func TestServiceOtherUser(t *testing.T) {
	svc, _, _ := newTestService(t, "other")
	root, err := svc.Root(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/api/v2/node/oroot", root.RemoteID)
}

func TestServiceCreateContainer(t *testing.T) {
	svc, api, _ := newTestService(t, "")
	ctx := context.Background()
	root, err := svc.Root(ctx)
	require.NoError(t, err)

	n, err := svc.CreateContainer(ctx, root, "New Album", fs.KindAlbum, fs.PrivacyPrivate)
	require.NoError(t, err)
	assert.Equal(t, fs.KindAlbum, n.Kind)
	assert.Equal(t, fs.PrivacyPrivate, n.Privacy)
	created := api.createdNodes()
	require.Len(t, created, 1)
	assert.Equal(t, createNodeRequest{Type: "Album", Name: "New Album", UrlName: "New-Album", Privacy: "Private"}, created[0])

	_, err = svc.CreateContainer(ctx, root, "Trips", fs.KindFolder, fs.PrivacyPublic)
	assert.ErrorIs(t, err, fs.ErrConflict)

	_, err = svc.CreateContainer(ctx, n, "Sub", fs.KindFolder, fs.PrivacyPublic)
	assert.Error(t, err)
}

func TestServiceUpload(t *testing.T) {
	svc, api, afs := newTestService(t, "")
	ctx := context.Background()
	require.NoError(t, afero.WriteFile(afs, "/photos/img1.jpg", []byte("jpeg bytes"), 0o644))

	// 相册 URI 未知时通过节点详情查询
	album := &fs.Node{Name: "Late", Kind: fs.KindAlbum, Path: "/Late", RemoteID: "/api/v2/node/a9"}
	n, err := svc.UploadImage(ctx, album, "/photos/img1.jpg")
	require.NoError(t, err)
	assert.Equal(t, "img1.jpg", n.Name)
	assert.Equal(t, "/api/v2/image/new", n.RemoteID)
	assert.Equal(t, int64(10), n.Size)
	assert.Equal(t, "/api/v2/album/k9", api.uploadedTo("img1.jpg"))

	_, err = svc.UploadImage(ctx, album, "/photos/missing.jpg")
	assert.Equal(t, fs.ErrorLocalIO, fs.Classify(err))
}

func TestServiceClassifiesStatus(t *testing.T) {
	svc, api, _ := newTestService(t, "")
	ctx := context.Background()
	root := &fs.Node{Kind: fs.KindFolder, Path: "/", RemoteID: "/api/v2/node/root"}

	api.force("/api/v2/node/root!children", http.StatusServiceUnavailable)
	_, err := svc.FetchChildren(ctx, root)
	assert.Equal(t, fs.ErrorNetwork, fs.Classify(err))

	api.force("/api/v2/node/root!children", http.StatusTooManyRequests)
	_, err = svc.FetchChildren(ctx, root)
	assert.Equal(t, fs.ErrorNetwork, fs.Classify(err))

	api.force("/api/v2/node/root!children", http.StatusUnauthorized)
	_, err = svc.FetchChildren(ctx, root)
	assert.Equal(t, fs.ErrorAuth, fs.Classify(err))

	api.force("/api/v2/node/root!children", http.StatusBadRequest)
	_, err = svc.FetchChildren(ctx, root)
	assert.Equal(t, fs.ErrorOther, fs.Classify(err))
}

func TestServiceNetworkFailure(t *testing.T) {
	client := NewClient(&Options{BaseURL: "http://127.0.0.1:1", UploadURL: "http://127.0.0.1:1/"})
	_, err := NewService(client, nil).Root(context.Background())
	assert.Equal(t, fs.ErrorNetwork, fs.Classify(err))
}
