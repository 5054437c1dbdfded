package moderation

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"math"
	"runtime"
	"time"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"
)

const (
	defaultImageTimeout     = 10 * time.Second
	defaultImageParallelism = 4
	// maxDecodePixels 超过该像素数不做完整解码，只基于头信息判断，约为 4000x4000
	maxDecodePixels = 16_000_000
	// brightnessSampleSize 计算亮度前缩放到的最大边长
	brightnessSampleSize = 256
)

// ContentFinding 内容识别类检查的结果
type ContentFinding struct {
	Found      bool
	Issues     []string
	Confidence float64
}

// ContentAnalyzer 图片内容识别扩展点（NSFW、暴力、图中文字等）
type ContentAnalyzer interface {
	Analyze(ctx context.Context, img image.Image, imageID string, category Category) (ContentFinding, error)
}

// NoopContentAnalyzer 默认实现，不做任何内容识别
type NoopContentAnalyzer struct{}

func (NoopContentAnalyzer) Analyze(context.Context, image.Image, string, Category) (ContentFinding, error) {
	return ContentFinding{}, nil
}

// ImageOption ImageEngine 可选项
type ImageOption func(*ImageEngine)

// WithContentAnalyzer 替换内容识别实现
func WithContentAnalyzer(a ContentAnalyzer) ImageOption {
	return func(e *ImageEngine) {
		if a != nil {
			e.analyzer = a
		}
	}
}

// WithImageTimeout 单张图片的处理时限
func WithImageTimeout(d time.Duration) ImageOption {
	return func(e *ImageEngine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithImageParallelism 单个帖子内并发处理的图片数
func WithImageParallelism(n int) ImageOption {
	return func(e *ImageEngine) {
		if n > 0 {
			e.parallelism = n
		}
	}
}

// WithMaxInflightDecodes 整个引擎同时进行的解码数，超时后仍在运行的解码也计入
func WithMaxInflightDecodes(n int) ImageOption {
	return func(e *ImageEngine) {
		if n > 0 {
			e.maxInflight = n
		}
	}
}

// ImageEngine 基于尺寸、比例、亮度的图片启发式审核，不理解图片内容
type ImageEngine struct {
	rules       RuleProvider
	analyzer    ContentAnalyzer
	timeout     time.Duration
	parallelism int
	maxInflight int
	inflight    chan struct{}
}

func NewImageEngine(rules RuleProvider, opts ...ImageOption) *ImageEngine {
	e := &ImageEngine{
		rules:       rules,
		analyzer:    NoopContentAnalyzer{},
		timeout:     defaultImageTimeout,
		parallelism: defaultImageParallelism,
		maxInflight: runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.inflight = make(chan struct{}, e.maxInflight)
	return e
}

// Evaluate 审核一个帖子的全部图片，单张失败不影响其余图片
func (e *ImageEngine) Evaluate(ctx context.Context, images [][]byte, category Category) ImageResult {
	if len(images) == 0 {
		return ImageResult{
			Issues:    []string{},
			Images:    []ImageAnalysis{},
			Message:   "No images to moderate",
			Timestamp: nowUTC(),
		}
	}

	rs := e.rules.Current()
	analyses := make([]ImageAnalysis, len(images))

	var g errgroup.Group
	g.SetLimit(e.parallelism)
	for i, data := range images {
		g.Go(func() error {
			analyses[i] = e.evaluateWithTimeout(ctx, rs, data, fmt.Sprintf("image_%d", i), category)
			return nil
		})
	}
	_ = g.Wait()

	return aggregateImages(analyses)
}

func aggregateImages(analyses []ImageAnalysis) ImageResult {
	res := ImageResult{
		Issues:      []string{},
		TotalImages: len(analyses),
		Images:      analyses,
		Timestamp:   nowUTC(),
	}
	for _, a := range analyses {
		if !a.Flagged {
			continue
		}
		res.Flagged = true
		res.Issues = append(res.Issues, a.Issues...)
		res.Confidence = math.Max(res.Confidence, a.Confidence)
	}
	res.Message = "Images passed moderation"
	if res.Flagged {
		res.Message = "Images flagged for review"
	}
	return res
}

func (e *ImageEngine) evaluateWithTimeout(ctx context.Context, rs *RuleSet, data []byte, imageID string, category Category) ImageAnalysis {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	// 名额由解码 goroutine 持有到真正结束
	select {
	case e.inflight <- struct{}{}:
	case <-ctx.Done():
		return errorAnalysis(rs, imageID, ctx.Err())
	}

	done := make(chan ImageAnalysis, 1)
	go func() {
		defer func() { <-e.inflight }()
		defer func() {
			if r := recover(); r != nil {
				done <- errorAnalysis(rs, imageID, fmt.Errorf("%w: %v", ErrImageDecode, r))
			}
		}()
		done <- e.evaluateOne(ctx, rs, data, imageID, category)
	}()

	select {
	case a := <-done:
		if err := ctx.Err(); err != nil {
			return errorAnalysis(rs, imageID, err)
		}
		return a
	case <-ctx.Done():
		return errorAnalysis(rs, imageID, ctx.Err())
	}
}

func errorAnalysis(rs *RuleSet, imageID string, err error) ImageAnalysis {
	return ImageAnalysis{
		ImageID:    imageID,
		Flagged:    true,
		Confidence: round3(rs.Image.ErrorConfidence),
		Issues:     []string{fmt.Sprintf("Error processing image %s: %v", imageID, err)},
		Timestamp:  nowUTC(),
	}
}

func (e *ImageEngine) evaluateOne(ctx context.Context, rs *RuleSet, data []byte, imageID string, category Category) ImageAnalysis {
	th := rs.Image
	var res checkResult

	if len(data) == 0 {
		return errorAnalysis(rs, imageID, fmt.Errorf("%w: empty payload", ErrImageDecode))
	}
	if th.MaxBytes > 0 && len(data) > th.MaxBytes {
		res.hit(fmt.Sprintf("Image %s exceeds maximum file size", imageID), th.OversizeConfidence)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return errorAnalysis(rs, imageID, fmt.Errorf("%w: %v", ErrImageDecode, err))
	}

	meta := ImageMetadata{
		Width:     cfg.Width,
		Height:    cfg.Height,
		Format:    format,
		SizeBytes: len(data),
	}
	checkDimensions(th, imageID, cfg.Width, cfg.Height, &res)

	if cfg.Width*cfg.Height <= maxDecodePixels {
		if err := ctx.Err(); err != nil {
			return errorAnalysis(rs, imageID, err)
		}
		img, err := imaging.Decode(bytes.NewReader(data))
		if err != nil {
			return errorAnalysis(rs, imageID, fmt.Errorf("%w: %v", ErrImageDecode, err))
		}
		if err := ctx.Err(); err != nil {
			return errorAnalysis(rs, imageID, err)
		}
		meta.Mode = colorMode(img)
		if meta.Mode == "RGB" || meta.Mode == "RGBA" || meta.Mode == "L" {
			checkBrightness(th, imageID, meanBrightness(img), &res)
		}

		finding, err := e.analyzer.Analyze(ctx, img, imageID, category)
		if err == nil && finding.Found {
			for _, issue := range finding.Issues {
				res.hit(issue, finding.Confidence)
			}
		}
	}

	issues := res.issues
	if issues == nil {
		issues = []string{}
	}
	return ImageAnalysis{
		ImageID:    imageID,
		Flagged:    len(issues) > 0,
		Confidence: round3(res.confidence),
		Issues:     issues,
		Metadata:   meta,
		Timestamp:  nowUTC(),
	}
}

func checkDimensions(th ImageThresholds, imageID string, width, height int, res *checkResult) {
	if width < th.MinDimension || height < th.MinDimension {
		res.hit(fmt.Sprintf("Image %s is too small (%dx%d)", imageID, width, height), th.TooSmallConfidence)
	}
	if width > th.MaxDimension || height > th.MaxDimension {
		res.hit(fmt.Sprintf("Image %s is too large (%dx%d)", imageID, width, height), th.TooLargeConfidence)
	}

	ratio := math.Inf(1)
	if height != 0 {
		ratio = float64(width) / float64(height)
	}
	for _, r := range th.AspectRatios {
		if r[0] == 0 || r[1] == 0 {
			continue
		}
		if math.Abs(ratio-r[0]/r[1]) < th.AspectTolerance || math.Abs(ratio-r[1]/r[0]) < th.AspectTolerance {
			res.hit(fmt.Sprintf("Image %s has suspicious aspect ratio", imageID), th.AspectConfidence)
			break
		}
	}
}

func checkBrightness(th ImageThresholds, imageID string, brightness float64, res *checkResult) {
	switch {
	case brightness < th.DarkBrightness:
		res.hit(fmt.Sprintf("Image %s is very dark (potential quality issue)", imageID), th.BrightnessConfidence)
	case brightness > th.BrightBrightness:
		res.hit(fmt.Sprintf("Image %s is very bright (potential quality issue)", imageID), th.BrightnessConfidence)
	}
}

// colorMode 将解码后的像素类型映射为 L/RGB/RGBA/P/CMYK
func colorMode(img image.Image) string {
	switch m := img.(type) {
	case *image.Gray, *image.Gray16:
		return "L"
	case *image.YCbCr:
		return "RGB"
	case *image.Paletted:
		return "P"
	case *image.CMYK:
		return "CMYK"
	case *image.RGBA, *image.NRGBA, *image.RGBA64, *image.NRGBA64:
		if o, ok := m.(interface{ Opaque() bool }); ok && o.Opaque() {
			return "RGB"
		}
		return "RGBA"
	}
	return "unknown"
}

// meanBrightness RGB 三通道均值的平均，灰度图三通道相同。大图先用 Box 滤波缩小
func meanBrightness(img image.Image) float64 {
	var nrgba *image.NRGBA
	b := img.Bounds()
	if b.Dx() > brightnessSampleSize || b.Dy() > brightnessSampleSize {
		nrgba = imaging.Fit(img, brightnessSampleSize, brightnessSampleSize, imaging.Box)
	} else {
		nrgba = imaging.Clone(img)
	}
	pix := nrgba.Pix
	if len(pix) == 0 {
		return 0
	}
	var sum uint64
	for i := 0; i+3 < len(pix); i += 4 {
		sum += uint64(pix[i]) + uint64(pix[i+1]) + uint64(pix[i+2])
	}
	pixels := len(pix) / 4
	return float64(sum) / float64(pixels*3)
}
