package models

// UploadInitRequest 定义了初始化分片上传的请求体
type UploadInitRequest struct {
	Filename string  `json:"filename" binding:"required,min=1,max=255"`
	Size     int64   `json:"size" binding:"required,gt=0"`
	Mime     string  `json:"mime" binding:"required,min=1,max=255"`
	FolderID *uint64 `json:"folderId"`
}

// UploadInitResponse 定义了初始化/恢复分片上传的响应体
type UploadInitResponse struct {
	UploadToken string    `json:"uploadToken"`
	UploadID    string    `json:"uploadId"`
	StorageKey  string    `json:"storageKey"`
	PartSize    int64     `json:"partSize"`
	TotalParts  int       `json:"totalParts"`
	MaxFileSize int64     `json:"maxFileSize,omitempty"`
	PartURLs    []PartURL `json:"partUrls"`
}

// PartURL 单个分片的预签名上传地址
type PartURL struct {
	PartNumber int    `json:"partNumber"`
	URL        string `json:"url"`
}

// UploadResumeRequest 重新签发指定分片的上传地址
type UploadResumeRequest struct {
	UploadToken string `json:"uploadToken" binding:"required"`
	PartNumbers []int  `json:"partNumbers" binding:"omitempty,dive,gte=1"`
}

// UploadPartInfo 包含了已上传分块的信息
type UploadPartInfo struct {
	PartNumber int    `json:"partNumber" binding:"required,gte=1"`
	ETag       string `json:"eTag" binding:"required"`
}

// UploadCompleteRequest 定义了完成分片上传的请求体
type UploadCompleteRequest struct {
	UploadToken string           `json:"uploadToken" binding:"required"`
	Parts       []UploadPartInfo `json:"parts" binding:"required,min=1,dive"`
	Checksum    *string          `json:"checksum" binding:"omitempty,max=128"`
}

// UploadCompleteResponse 完成上传后返回创建的文件
type UploadCompleteResponse struct {
	File *File `json:"file"`
}

// UploadAbortRequest 放弃一次分片上传
type UploadAbortRequest struct {
	UploadToken string `json:"uploadToken" binding:"required"`
}
