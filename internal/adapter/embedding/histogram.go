package embedding

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"artscope/internal/domain"
)

const (
	// InputSize is the square size images are scaled to before extraction.
	InputSize = 224

	colorLevels    = 4 // per channel
	colorBins      = colorLevels * colorLevels * colorLevels
	gridCells      = 4 // per side
	gridFeatures   = gridCells * gridCells * 3
	gradientBins   = 16
	HistogramModel = "histogram-v1"

	// DefaultMaxPixels caps the decoded size of an image.
	DefaultMaxPixels = 40_000_000
)

// HistogramDimension is the length of embeddings produced by HistogramExtractor.
const HistogramDimension = colorBins + gridFeatures + gradientBins

// HistogramExtractor computes a deterministic hand-crafted embedding: a
// quantised RGB histogram, per-cell mean colours over a 4x4 grid and a
// magnitude-weighted histogram of edge orientations. It needs no model
// server and is good enough to recognise photos of catalogued artworks taken
// straight on.
type HistogramExtractor struct {
	maxPixels int
}

// NewHistogramExtractor creates an extractor that refuses images larger than
// maxPixels (width*height) before decoding them. Zero or less uses
// DefaultMaxPixels.
func NewHistogramExtractor(maxPixels int) *HistogramExtractor {
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	return &HistogramExtractor{maxPixels: maxPixels}
}

func (e *HistogramExtractor) Extract(ctx context.Context, data []byte) (domain.Embedding, error) {
	if len(data) == 0 {
		return nil, &domain.ExtractionError{Model: HistogramModel, Err: errors.New("empty image")}
	}
	if err := ctx.Err(); err != nil {
		return nil, &domain.ExtractionError{Model: HistogramModel, Err: err}
	}

	// the header alone is enough to refuse a decompression bomb
	hdr, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, &domain.ExtractionError{Model: HistogramModel, Err: fmt.Errorf("failed to decode image: %w", err)}
	}
	if pixels := int64(hdr.Width) * int64(hdr.Height); pixels > int64(e.maxPixels) {
		return nil, &domain.ExtractionError{
			Model: HistogramModel,
			Err:   fmt.Errorf("%s image is %dx%d, larger than the %d pixel limit", format, hdr.Width, hdr.Height, e.maxPixels),
		}
	}

	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &domain.ExtractionError{Model: HistogramModel, Err: fmt.Errorf("failed to decode image: %w", err)}
	}
	if src.Bounds().Empty() {
		return nil, &domain.ExtractionError{Model: HistogramModel, Err: fmt.Errorf("%s image has no pixels", format)}
	}

	img := image.NewRGBA(image.Rect(0, 0, InputSize, InputSize))
	draw.ApproxBiLinear.Scale(img, img.Bounds(), src, src.Bounds(), draw.Src, nil)

	emb := make(domain.Embedding, 0, HistogramDimension)
	emb = append(emb, colorHistogram(img)...)
	emb = append(emb, gridMeans(img)...)
	emb = append(emb, gradientHistogram(img)...)
	return emb, nil
}

func (e *HistogramExtractor) Dimension() int {
	return HistogramDimension
}

func (e *HistogramExtractor) ModelName() string {
	return HistogramModel
}

func colorHistogram(img *image.RGBA) []float32 {
	var counts [colorBins]int
	shift := 8 - bitsFor(colorLevels)
	for i := 0; i+3 < len(img.Pix); i += 4 {
		r := int(img.Pix[i]) >> shift
		g := int(img.Pix[i+1]) >> shift
		b := int(img.Pix[i+2]) >> shift
		counts[(r*colorLevels+g)*colorLevels+b]++
	}

	total := float32(InputSize * InputSize)
	out := make([]float32, colorBins)
	for i, c := range counts {
		out[i] = float32(c) / total
	}
	return out
}

func gridMeans(img *image.RGBA) []float32 {
	cell := InputSize / gridCells
	out := make([]float32, 0, gridFeatures)
	for gy := 0; gy < gridCells; gy++ {
		for gx := 0; gx < gridCells; gx++ {
			var sum [3]float64
			for y := gy * cell; y < (gy+1)*cell; y++ {
				for x := gx * cell; x < (gx+1)*cell; x++ {
					off := img.PixOffset(x, y)
					sum[0] += float64(img.Pix[off])
					sum[1] += float64(img.Pix[off+1])
					sum[2] += float64(img.Pix[off+2])
				}
			}
			n := float64(cell*cell) * 255
			out = append(out, float32(sum[0]/n), float32(sum[1]/n), float32(sum[2]/n))
		}
	}
	return out
}

func gradientHistogram(img *image.RGBA) []float32 {
	lum := make([]float64, InputSize*InputSize)
	for y := 0; y < InputSize; y++ {
		for x := 0; x < InputSize; x++ {
			off := img.PixOffset(x, y)
			lum[y*InputSize+x] = 0.299*float64(img.Pix[off]) + 0.587*float64(img.Pix[off+1]) + 0.114*float64(img.Pix[off+2])
		}
	}

	var bins [gradientBins]float64
	var total float64
	for y := 1; y < InputSize-1; y++ {
		for x := 1; x < InputSize-1; x++ {
			gx := lum[y*InputSize+x+1] - lum[y*InputSize+x-1]
			gy := lum[(y+1)*InputSize+x] - lum[(y-1)*InputSize+x]
			mag := math.Hypot(gx, gy)
			if mag == 0 {
				continue
			}
			// unsigned orientation in [0, pi)
			angle := math.Atan2(gy, gx)
			if angle < 0 {
				angle += math.Pi
			}
			bin := int(angle / math.Pi * gradientBins)
			if bin >= gradientBins {
				bin = gradientBins - 1
			}
			bins[bin] += mag
			total += mag
		}
	}

	out := make([]float32, gradientBins)
	if total == 0 {
		return out
	}
	for i, v := range bins {
		out[i] = float32(v / total)
	}
	return out
}

func bitsFor(levels int) int {
	bits := 0
	for 1<<bits < levels {
		bits++
	}
	return bits
}
