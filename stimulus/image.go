package stimulus

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/rushteam/featx/core"
)

// LoadImage 解码 JPEG/PNG/GIF/BMP/WebP 图像为 HWC float32 RGB 刺激（取值 0~255）
func LoadImage(path string, opts ...Option) (*core.ImageStim, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, core.Errorf(core.ModuleCore, core.ErrorCodeInvalidInput, "decode image %s: %v", path, err)
	}
	return fromImage(img, path, opts)
}

// ImageFromImage 将 image.Image 转为图像刺激
func ImageFromImage(img image.Image, opts ...Option) (*core.ImageStim, error) {
	return fromImage(img, "", opts)
}

// ImageFromArray 将 HWC 像素数组包装为图像刺激
func ImageFromArray(data *core.Tensor, opts ...Option) (*core.ImageStim, error) {
	if data == nil || data.Rank() < 2 {
		return nil, core.Errorf(core.ModuleCore, core.ErrorCodeInvalidInput, "image data must have at least 2 dimensions")
	}
	x, err := data.AsFloat32()
	if err != nil {
		return nil, err
	}
	return &core.ImageStim{Meta: newMeta("", opts), Data: x}, nil
}

func fromImage(img image.Image, filename string, opts []Option) (*core.ImageStim, error) {
	b := img.Bounds()
	h, w := b.Dy(), b.Dx()
	data := make([]float32, 0, h*w*3)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			// RGBA 返回 16 位预乘值，转回 8 位范围
			r, g, bl, _ := img.At(x, y).RGBA()
			data = append(data, float32(r>>8), float32(g>>8), float32(bl>>8))
		}
	}
	t, err := core.NewFloat32([]int{h, w, 3}, data)
	if err != nil {
		return nil, err
	}
	return &core.ImageStim{Meta: newMeta(filename, opts), Data: t}, nil
}
