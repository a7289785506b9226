package util

import (
	"errors"
	"net/http"
	"path/filepath"
	"strings"
)

// 办公文档是 zip/OLE 容器，内容探测给不出真实类型，按扩展名回落
var containerExtensionTypes = map[string]string{
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".xls":  "application/vnd.ms-excel",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

// ResolveMimeType 按内容深度探测文件类型
// 探测结果是容器格式（zip / 二进制流）时按扩展名判定真实类型
func ResolveMimeType(head []byte, filename string) string {
	mimeType := http.DetectContentType(head)

	base := mimeType
	if i := strings.Index(base, ";"); i >= 0 {
		base = strings.TrimSpace(base[:i])
	}
	if base == "application/zip" || base == "application/octet-stream" {
		if byExt, ok := containerExtensionTypes[strings.ToLower(filepath.Ext(filename))]; ok {
			return byExt
		}
	}
	return mimeType
}

// ValidateMimeType 校验文件类型是否在允许列表内
// allowedTypes: 允许的 MIME 前缀或完整类型，如 "image/", "application/pdf"
func ValidateMimeType(head []byte, filename string, allowedTypes []string) (string, error) {
	mimeType := ResolveMimeType(head, filename)
	for _, allowed := range allowedTypes {
		if strings.HasPrefix(mimeType, allowed) {
			return mimeType, nil
		}
	}
	return mimeType, errors.New("invalid file type: " + mimeType)
}

// IsImage 检测是否为图片
func IsImage(mimeType string) bool {
	return strings.HasPrefix(mimeType, "image/")
}
