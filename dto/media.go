package dto

type MediaUploadResponse struct {
	ObjectName string `json:"object_name" example:"posts/0190b2c4/cover.png"`
	URL        string `json:"url" example:"https://cdn.example.com/posts/0190b2c4/cover.png"`
	Size       int64  `json:"size" example:"102400"`
	MimeType   string `json:"mime_type" example:"image/png"`
}
