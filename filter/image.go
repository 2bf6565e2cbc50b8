package filter

import (
	"context"
	"image"
	"image/color"
	"strings"

	"golang.org/x/image/draw"

	"github.com/rushteam/featx/core"
)

// Kernel 返回名称对应的插值核，未知名称返回 false。
// 支持 nearest、approxbilinear、bilinear、catmullrom。
func Kernel(name string) (draw.Interpolator, bool) {
	switch strings.ToLower(name) {
	case "nearest":
		return draw.NearestNeighbor, true
	case "approxbilinear":
		return draw.ApproxBiLinear, true
	case "bilinear":
		return draw.BiLinear, true
	case "", "catmullrom", "bicubic":
		return draw.CatmullRom, true
	default:
		return nil, false
	}
}

// ImageResizingFilter 将图像缩放到固定尺寸（不保持宽高比）。
//
// 像素先转为 16 位 RGBA 再用 golang.org/x/image/draw 插值，输出仍为 0~255 的 float32。
// 支持 1 通道（灰度）和 3 通道（RGB）图像。
type ImageResizingFilter struct {
	Height int
	Width  int
	// Kernel 插值核，默认 draw.CatmullRom
	Kernel draw.Interpolator
}

// NewImageResizingFilter 创建缩放过滤器，size 为 (高, 宽)
func NewImageResizingFilter(height, width int) *ImageResizingFilter {
	return &ImageResizingFilter{Height: height, Width: width, Kernel: draw.CatmullRom}
}

func (f *ImageResizingFilter) Name() string { return "filter.image_resizing" }

// Transform 实现 Filter
func (f *ImageResizingFilter) Transform(ctx context.Context, stim core.Stimulus) (core.Stimulus, error) {
	img, ok := stim.(*core.ImageStim)
	if !ok {
		return nil, unsupported(f.Name(), stim)
	}
	return f.Resize(img)
}

// Resize 缩放图像刺激；尺寸已符合时返回原刺激
func (f *ImageResizingFilter) Resize(stim *core.ImageStim) (*core.ImageStim, error) {
	if f.Height <= 0 || f.Width <= 0 {
		return nil, core.Errorf(core.ModuleCore, core.ErrorCodeInvalidConfig,
			"image resizing size must be positive, got (%d, %d)", f.Height, f.Width)
	}
	x := stim.Data
	if x == nil || x.DType != core.Float32 || x.Rank() != 3 {
		return nil, core.Errorf(core.ModuleCore, core.ErrorCodeInvalidInput, "image data must be a float32 HWC tensor")
	}
	h, w, c := x.Shape[0], x.Shape[1], x.Shape[2]
	if c != 1 && c != 3 {
		return nil, core.Errorf(core.ModuleCore, core.ErrorCodeInvalidInput, "image must have 1 or 3 channels, got %d", c)
	}
	if h == f.Height && w == f.Width {
		return stim, nil
	}

	src := toRGBA64(x)
	dst := image.NewRGBA64(image.Rect(0, 0, f.Width, f.Height))
	kernel := f.Kernel
	if kernel == nil {
		kernel = draw.CatmullRom
	}
	kernel.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

	out, err := fromRGBA64(dst, c)
	if err != nil {
		return nil, err
	}
	return &core.ImageStim{Meta: stim.Meta.Clone(), Data: out}, nil
}

func toRGBA64(x *core.Tensor) *image.RGBA64 {
	h, w, c := x.Shape[0], x.Shape[1], x.Shape[2]
	img := image.NewRGBA64(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for i := 0; i < w; i++ {
			base := (y*w + i) * c
			r := to16(x.Floats[base])
			g, b := r, r
			if c == 3 {
				g = to16(x.Floats[base+1])
				b = to16(x.Floats[base+2])
			}
			img.SetRGBA64(i, y, color.RGBA64{R: r, G: g, B: b, A: 0xffff})
		}
	}
	return img
}

func fromRGBA64(img *image.RGBA64, c int) (*core.Tensor, error) {
	b := img.Bounds()
	h, w := b.Dy(), b.Dx()
	data := make([]float32, 0, h*w*c)
	for y := 0; y < h; y++ {
		for i := 0; i < w; i++ {
			px := img.RGBA64At(b.Min.X+i, b.Min.Y+y)
			data = append(data, from16(px.R))
			if c == 3 {
				data = append(data, from16(px.G), from16(px.B))
			}
		}
	}
	return core.NewFloat32([]int{h, w, c}, data)
}

func to16(v float32) uint16 {
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 0xffff
	default:
		return uint16(v*257 + 0.5)
	}
}

func from16(v uint16) float32 { return float32(v) / 257 }

var _ Filter = (*ImageResizingFilter)(nil)
