package minio

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	log "log/slog"
	"strings"
	"time"

	"Bazaar/internal/api/config"
	"Bazaar/internal/model"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/pkg/errors"
)

const (
	SizeOriginal  = "original"
	SizeThumbnail = "thumbnail"
	SizeMedium    = "medium"
	SizeLarge     = "large"

	jpegQuality = 85
)

// variantSizes 缩略图最长边，等比缩放且不放大
var variantSizes = []struct {
	name string
	edge int
}{
	{SizeThumbnail, 150},
	{SizeMedium, 500},
	{SizeLarge, 1200},
}

// ImageStore 帖子图片存储：原图加三种 JPEG 尺寸
type ImageStore struct {
	client     *minio.Client
	bucket     string
	publicBase string
}

func NewImageStore(client *minio.Client, cfg config.MinIOConfig) *ImageStore {
	return &ImageStore{
		client:     client,
		bucket:     cfg.Bucket,
		publicBase: publicBase(cfg),
	}
}

func publicBase(cfg config.MinIOConfig) string {
	if cfg.PublicBase != "" {
		return strings.TrimRight(cfg.PublicBase, "/") + "/" + cfg.Bucket
	}
	protocol := "http"
	if cfg.UseSSL {
		protocol = "https"
	}
	return fmt.Sprintf("%s://%s/%s", protocol, cfg.Endpoint, cfg.Bucket)
}

type rendition struct {
	name        string
	object      string
	data        []byte
	contentType string
}

// renderVariants 生成原图与各尺寸 JPEG 的对象列表
func renderVariants(prefix string, data []byte) ([]rendition, string, error) {
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", errors.Wrap(err, "decode image header")
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, "", errors.Wrap(err, "decode image")
	}

	ext := format
	if ext == "jpeg" {
		ext = "jpg"
	}
	out := []rendition{{
		name:        SizeOriginal,
		object:      prefix + "/original." + ext,
		data:        data,
		contentType: "image/" + format,
	}}
	for _, v := range variantSizes {
		var buf bytes.Buffer
		resized := imaging.Fit(img, v.edge, v.edge, imaging.Lanczos)
		if err = imaging.Encode(&buf, resized, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
			return nil, "", errors.Wrapf(err, "encode %s", v.name)
		}
		out = append(out, rendition{
			name:        v.name,
			object:      prefix + "/" + v.name + ".jpg",
			data:        buf.Bytes(),
			contentType: "image/jpeg",
		})
	}
	return out, ext, nil
}

// Save 上传一张图片的全部尺寸，任一失败时清理已上传对象
func (s *ImageStore) Save(ctx context.Context, postID string, data []byte) (*model.PostImage, error) {
	imageID := uuid.NewString()
	prefix := fmt.Sprintf("posts/%s/%s", postID, imageID)

	renditions, ext, err := renderVariants(prefix, data)
	if err != nil {
		return nil, err
	}

	img := &model.PostImage{
		ImageID:    imageID,
		Filename:   imageID + "." + ext,
		URLs:       make(map[string]string, len(renditions)),
		UploadedAt: time.Now().UTC(),
	}
	uploaded := make([]string, 0, len(renditions))
	for _, r := range renditions {
		_, err = s.client.PutObject(ctx, s.bucket, r.object, bytes.NewReader(r.data), int64(len(r.data)),
			minio.PutObjectOptions{ContentType: r.contentType})
		if err != nil {
			s.removeObjects(ctx, uploaded)
			return nil, errors.Wrapf(err, "upload %s", r.object)
		}
		uploaded = append(uploaded, r.object)
		img.URLs[r.name] = s.publicBase + "/" + r.object
		if r.name == SizeOriginal {
			img.Original = r.object
		}
	}
	return img, nil
}

// Delete 删除图片的全部尺寸，失败只记录日志
func (s *ImageStore) Delete(ctx context.Context, images []model.PostImage) {
	var objects []string
	for _, img := range images {
		objects = append(objects, s.objectsOf(img)...)
	}
	s.removeObjects(ctx, objects)
}

// LoadOriginals 读取原图字节，用于跨实例恢复审核
func (s *ImageStore) LoadOriginals(ctx context.Context, images []model.PostImage) ([][]byte, error) {
	out := make([][]byte, 0, len(images))
	for _, img := range images {
		obj, err := s.client.GetObject(ctx, s.bucket, img.Original, minio.GetObjectOptions{})
		if err != nil {
			return nil, errors.Wrapf(err, "get %s", img.Original)
		}
		data, err := io.ReadAll(obj)
		_ = obj.Close()
		if err != nil {
			return nil, errors.Wrapf(err, "read %s", img.Original)
		}
		out = append(out, data)
	}
	return out, nil
}

func (s *ImageStore) objectsOf(img model.PostImage) []string {
	objects := make([]string, 0, len(img.URLs))
	prefix := s.publicBase + "/"
	for _, u := range img.URLs {
		objects = append(objects, strings.TrimPrefix(u, prefix))
	}
	return objects
}

func (s *ImageStore) removeObjects(ctx context.Context, objects []string) {
	for _, obj := range objects {
		if err := s.client.RemoveObject(ctx, s.bucket, obj, minio.RemoveObjectOptions{}); err != nil {
			log.WarnContext(ctx, "failed to remove image object", "object", obj, "err", err)
		}
	}
}
