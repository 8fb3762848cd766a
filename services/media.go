package services

import (
	"fmt"
	"mime/multipart"
	"path/filepath"
	"strings"

	"github.com/alphabatem/common/context"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/fableink/fable_api/dto"
	"github.com/fableink/fable_api/shared"
)

// MediaService validates and stores uploaded post images in object storage.
type MediaService struct {
	context.DefaultService

	minioSvc *MinIOService

	maxUploadSize int64
}

const MEDIA_SVC = "media_svc"

var allowedImageTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
}

func (svc MediaService) Id() string {
	return MEDIA_SVC
}

func (svc *MediaService) Configure(ctx *context.Context) error {
	svc.maxUploadSize = int64(envInt("MAX_UPLOAD_SIZE_MB", 5)) * 1024 * 1024
	return svc.DefaultService.Configure(ctx)
}

func (svc *MediaService) Start() error {
	svc.minioSvc = svc.Service(MINIO_SVC).(*MinIOService)
	return nil
}

// UploadPostImage stores an image for postID and returns its public URL.
// Object names are namespaced by post so images can be cleaned up when the
// post goes away.
func (svc *MediaService) UploadPostImage(postID string, fileHeader *multipart.FileHeader) (*dto.MediaUploadResponse, error) {
	if fileHeader.Size > svc.maxUploadSize {
		return nil, shared.NewBadRequestError(nil,
			fmt.Sprintf("File too large, maximum size is %dMB", svc.maxUploadSize/(1024*1024)))
	}

	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	contentType, ok := allowedImageTypes[ext]
	if !ok {
		return nil, shared.NewBadRequestError(nil, "Unsupported image type, use jpg, png or webp")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return nil, shared.NewInternalError(err, "Failed to read uploaded file")
	}
	defer file.Close()

	objectName := fmt.Sprintf("posts/%s/%s%s", postID, uuid.NewString(), ext)

	info, err := svc.minioSvc.UploadFile(objectName, file, fileHeader.Size, contentType)
	if err != nil {
		return nil, shared.NewInternalError(err, "Failed to store image")
	}

	log.WithFields(log.Fields{
		"post_id": postID,
		"object":  objectName,
		"size":    info.Size,
	}).Info("Post image uploaded")

	return &dto.MediaUploadResponse{
		ObjectName: objectName,
		URL:        svc.minioSvc.PublicURL(objectName),
		Size:       info.Size,
		MimeType:   contentType,
	}, nil
}

// DeletePostImage removes a stored object. Missing objects are not an error.
func (svc *MediaService) DeletePostImage(objectName string) error {
	if objectName == "" {
		return nil
	}
	return svc.minioSvc.DeleteFile(objectName)
}
