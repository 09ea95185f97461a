package handler

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sitebuilder/internal/media"
)

const maxUploadSize = 20 << 20

// UploadMedia 保存上传的图片或视频，并返回可写入 section 的存储 key 与访问地址。
func (a *API) UploadMedia(c *gin.Context) {
	if _, ok := a.authorize(c); !ok {
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		respondError(c, http.StatusBadRequest, "未找到上传的文件")
		return
	}
	if file.Size > maxUploadSize {
		respondError(c, http.StatusBadRequest, "文件过大")
		return
	}

	contentType := file.Header.Get("Content-Type")
	resourceType := media.ResourceTypeFor(contentType)
	if resourceType == "" {
		respondError(c, http.StatusBadRequest, "只允许上传图片或视频文件")
		return
	}

	if err := os.MkdirAll(a.uploadDir, 0o755); err != nil {
		respondError(c, http.StatusInternalServerError, "创建上传目录失败")
		return
	}

	key := media.NewStorageKey(file.Filename)
	if err := c.SaveUploadedFile(file, filepath.Join(a.uploadDir, key)); err != nil {
		respondError(c, http.StatusInternalServerError, "保存文件失败")
		return
	}

	url, err := a.resolver.ResolveURL(key, media.Options{})
	if err != nil {
		url = path.Join("/", strings.Trim(a.uploadURL, "/"), key)
	}

	c.JSON(http.StatusCreated, gin.H{
		"key":          key,
		"url":          url,
		"resourceType": resourceType,
	})
}
