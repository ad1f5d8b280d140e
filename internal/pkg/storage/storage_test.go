package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContentDisposition(t *testing.T) {
	assert.Equal(t, "attachment; filename*=UTF-8''my%20report.pdf", ContentDisposition("my report.pdf"))
	assert.Equal(t, "attachment; filename*=UTF-8''%E6%8A%A5%E5%91%8A.pdf", ContentDisposition("报告.pdf"))
}

func TestNormalizeETag(t *testing.T) {
	assert.Equal(t, `"abc"`, NormalizeETag("abc"))
	assert.Equal(t, `"abc"`, NormalizeETag(`"abc"`))
	assert.Equal(t, `"abc"`, NormalizeETag(` "abc`))
}

func TestSortParts(t *testing.T) {
	in := []UploadPartResult{
		{PartNumber: 3, ETag: "c"},
		{PartNumber: 1, ETag: `"a"`},
		{PartNumber: 2, ETag: "b"},
	}

	got := SortParts(in)

	assert.Equal(t, []UploadPartResult{
		{PartNumber: 1, ETag: `"a"`},
		{PartNumber: 2, ETag: `"b"`},
		{PartNumber: 3, ETag: `"c"`},
	}, got)
	assert.Equal(t, 3, in[0].PartNumber, "input must not be reordered")
}
