package smugmug

// envelope 通用响应外壳 {"Response": {...}, "Code": 200, "Message": "Ok"}
type envelope[T any] struct {
	Response T      `json:"Response"`
	Code     int    `json:"Code"`
	Message  string `json:"Message"`
}

// Link 资源引用
type Link struct {
	Uri string `json:"Uri"`
}

// Pages 分页信息, NextPage 为空表示最后一页
type Pages struct {
	Total    int    `json:"Total"`
	Start    int    `json:"Start"`
	Count    int    `json:"Count"`
	NextPage string `json:"NextPage"`
}

// User !authuser 和 user/{nick} 的返回
type User struct {
	NickName string `json:"NickName"`
	Name     string `json:"Name"`
	Uri      string `json:"Uri"`
	Uris     struct {
		Node Link `json:"Node"`
	} `json:"Uris"`
}

type userResponse struct {
	User User `json:"User"`
}

// NodeInfo 文件夹或相册节点
type NodeInfo struct {
	NodeID  string `json:"NodeID"`
	Name    string `json:"Name"`
	Type    string `json:"Type"` // Folder, Album, Page
	UrlName string `json:"UrlName"`
	Privacy string `json:"Privacy"`
	Uri     string `json:"Uri"`
	Uris    struct {
		Album Link `json:"Album"`
	} `json:"Uris"`
}

type nodeResponse struct {
	Node NodeInfo `json:"Node"`
}

type nodeListResponse struct {
	Node  []NodeInfo `json:"Node"`
	Pages Pages      `json:"Pages"`
}

// AlbumImage 相册中的一张图片
type AlbumImage struct {
	FileName     string `json:"FileName"`
	ImageKey     string `json:"ImageKey"`
	ArchivedSize int64  `json:"ArchivedSize"`
	Uri          string `json:"Uri"`
}

type albumImagesResponse struct {
	AlbumImage []AlbumImage `json:"AlbumImage"`
	Pages      Pages        `json:"Pages"`
}

// createNodeRequest POST node!children 的请求体
type createNodeRequest struct {
	Type    string `json:"Type"`
	Name    string `json:"Name"`
	UrlName string `json:"UrlName"`
	Privacy string `json:"Privacy"`
}

// uploadResponse upload.smugmug.com 的返回
type uploadResponse struct {
	Stat    string `json:"stat"`
	Code    int    `json:"code"`
	Message string `json:"message"`
	Image   struct {
		ImageUri      string `json:"ImageUri"`
		AlbumImageUri string `json:"AlbumImageUri"`
	} `json:"Image"`
}
