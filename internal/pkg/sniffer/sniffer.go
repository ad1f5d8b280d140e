// Package sniffer 根据文件头识别真实的 MIME 类型
package sniffer

import (
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// SniffBytes 读取对象开头的字节数
const SniffBytes = 8192

const octetStream = "application/octet-stream"

// Detect 返回去掉参数后的 MIME 类型，例如 "text/plain"
func Detect(prefix []byte) string {
	mtype := mimetype.Detect(prefix).String()
	if i := strings.IndexByte(mtype, ';'); i >= 0 {
		mtype = mtype[:i]
	}
	return strings.ToLower(strings.TrimSpace(mtype))
}

// IsInconclusive 检测结果无法推翻客户端声明的类型
// 魔数检测对纯文本格式（JSON、CSV 等）只能给出 text/plain
func IsInconclusive(detected, declared string) bool {
	if detected == "" || detected == octetStream {
		return true
	}
	if detected == "text/plain" && isTextual(declared) {
		return true
	}
	return false
}

func isTextual(mime string) bool {
	mime = strings.ToLower(mime)
	return strings.HasPrefix(mime, "text/") || mime == "application/json"
}

// Resolve 决定最终落库的 MIME 类型
func Resolve(prefix []byte, declared string) string {
	detected := Detect(prefix)
	if IsInconclusive(detected, declared) {
		return strings.ToLower(declared)
	}
	return detected
}
