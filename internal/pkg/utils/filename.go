package utils

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

const maxFilenameLength = 255

var (
	pathSeparators = regexp.MustCompile(`[\\/]`)
	repeatedDots   = regexp.MustCompile(`\.{2,}`)
	unsafeChars    = regexp.MustCompile(`[^a-zA-Z0-9._ -]`)
)

// SanitizeFilename 清理用户提供的文件名，结果只包含安全字符
func SanitizeFilename(name string) string {
	name = pathSeparators.ReplaceAllString(name, "_")
	name = repeatedDots.ReplaceAllString(name, ".")
	name = unsafeChars.ReplaceAllString(name, "_")
	name = strings.TrimSpace(name)
	if len(name) > maxFilenameLength {
		name = name[:maxFilenameLength]
	}
	return name
}

// BuildStorageKey 生成对象存储 key: {ownerId}/{yyyy}/{MM}/{random}-{filename}
func BuildStorageKey(ownerID uint64, filename string, now time.Time) (string, error) {
	random, err := RandomHex(8)
	if err != nil {
		return "", err
	}
	now = now.UTC()
	return fmt.Sprintf("%d/%04d/%02d/%s-%s", ownerID, now.Year(), int(now.Month()), random, SanitizeFilename(filename)), nil
}
