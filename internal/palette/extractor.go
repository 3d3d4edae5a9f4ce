package palette

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"os"
	"sort"

	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/draw"
)

var defaultOptions = Options{
	MaxDimension:     160,
	CandidateCount:   16,
	QuantizationBits: 5,
	AlphaThreshold:   16,
	MinDelta:         4,
}

type Options struct {
	MaxDimension     int
	CandidateCount   int
	QuantizationBits int
	AlphaThreshold   int
	// MinDelta is the CIE Lab distance under which two swatches merge.
	MinDelta float64
}

func DefaultOptions() Options {
	return defaultOptions
}

func (o Options) normalized() Options {
	normalized := o
	if normalized.MaxDimension <= 0 {
		normalized.MaxDimension = defaultOptions.MaxDimension
	}
	normalized.MaxDimension = clampInt(normalized.MaxDimension, 16, 1024)

	if normalized.CandidateCount <= 0 {
		normalized.CandidateCount = defaultOptions.CandidateCount
	}
	normalized.CandidateCount = clampInt(normalized.CandidateCount, 4, 64)

	if normalized.QuantizationBits <= 0 {
		normalized.QuantizationBits = defaultOptions.QuantizationBits
	}
	normalized.QuantizationBits = clampInt(normalized.QuantizationBits, 3, 6)

	if normalized.AlphaThreshold <= 0 {
		normalized.AlphaThreshold = defaultOptions.AlphaThreshold
	}
	normalized.AlphaThreshold = clampInt(normalized.AlphaThreshold, 0, 254)

	if normalized.MinDelta <= 0 {
		normalized.MinDelta = defaultOptions.MinDelta
	}

	return normalized
}

type Extractor struct {
	options Options
}

func NewExtractor(options Options) *Extractor {
	return &Extractor{options: options.normalized()}
}

func (e *Extractor) ExtractFromPath(path string) (Palette, error) {
	file, err := os.Open(path)
	if err != nil {
		return Palette{}, fmt.Errorf("open image: %w", err)
	}
	defer file.Close()

	decoded, _, err := image.Decode(file)
	if err != nil {
		return Palette{}, fmt.Errorf("decode image: %w", err)
	}

	return e.ExtractFromImage(decoded)
}

func (e *Extractor) ExtractFromBytes(data []byte) (Palette, error) {
	decoded, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Palette{}, fmt.Errorf("decode image: %w", err)
	}

	return e.ExtractFromImage(decoded)
}

func (e *Extractor) ExtractFromImage(img image.Image) (Palette, error) {
	if img.Bounds().Empty() {
		return Palette{}, errors.New("image has no pixels")
	}

	sampled := downscale(img, e.options.MaxDimension)

	bins, err := buildColorBins(sampled, e.options)
	if err != nil {
		return Palette{}, err
	}

	swatches := boxesToSwatches(buildBoxes(bins, e.options.CandidateCount))
	if len(swatches) == 0 {
		return Palette{}, errors.New("no color swatches extracted")
	}
	swatches = deduplicateSwatches(swatches, e.options.MinDelta)

	return assignRoles(swatches, averageColor(bins)), nil
}

type colorBin struct {
	rq    uint8
	gq    uint8
	bq    uint8
	r     uint8
	g     uint8
	b     uint8
	count int
}

type colorBox struct {
	bins       []colorBin
	population int
	min        [3]uint8
	max        [3]uint8
}

type swatch struct {
	color      colorful.Color
	population int
	hue        float64
	saturation float64
	lightness  float64
}

func downscale(img image.Image, maxDimension int) *image.NRGBA {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	if longest := max(width, height); longest > maxDimension {
		scale := float64(maxDimension) / float64(longest)
		width = max(int(math.Round(float64(width)*scale)), 1)
		height = max(int(math.Round(float64(height)*scale)), 1)
	}

	dst := image.NewNRGBA(image.Rect(0, 0, width, height))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, bounds, draw.Src, nil)
	return dst
}

func buildColorBins(img *image.NRGBA, options Options) ([]colorBin, error) {
	bits := options.QuantizationBits
	channelShift := 8 - bits
	histogram := make(map[[3]uint8]int)

	bounds := img.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		rowOffset := (y - bounds.Min.Y) * img.Stride
		for x := 0; x < bounds.Dx(); x++ {
			offset := rowOffset + x*4
			if int(img.Pix[offset+3]) <= options.AlphaThreshold {
				continue
			}

			key := [3]uint8{
				img.Pix[offset] >> channelShift,
				img.Pix[offset+1] >> channelShift,
				img.Pix[offset+2] >> channelShift,
			}
			histogram[key]++
		}
	}

	if len(histogram) == 0 {
		return nil, errors.New("no eligible pixels after filtering")
	}

	bins := make([]colorBin, 0, len(histogram))
	for key, count := range histogram {
		bins = append(bins, colorBin{
			rq:    key[0],
			gq:    key[1],
			bq:    key[2],
			r:     quantizedToRGB(key[0], bits),
			g:     quantizedToRGB(key[1], bits),
			b:     quantizedToRGB(key[2], bits),
			count: count,
		})
	}

	sort.Slice(bins, func(i, j int) bool {
		if bins[i].count != bins[j].count {
			return bins[i].count > bins[j].count
		}
		return binKey(bins[i]) < binKey(bins[j])
	})

	return bins, nil
}

func binKey(bin colorBin) int {
	return int(bin.rq)<<16 | int(bin.gq)<<8 | int(bin.bq)
}

func quantizedToRGB(value uint8, bits int) uint8 {
	bucketSize := 256 >> bits
	return uint8(clampInt(int(value)*bucketSize+bucketSize/2, 0, 255))
}

// buildBoxes runs median cut, always splitting the most populous splittable
// box along its longest quantized axis.
func buildBoxes(bins []colorBin, targetCount int) []colorBox {
	if len(bins) == 0 {
		return nil
	}

	boxes := []colorBox{newColorBox(bins)}
	for len(boxes) < targetCount {
		candidate := -1
		for index, box := range boxes {
			if !box.canSplit() {
				continue
			}
			if candidate < 0 || box.population > boxes[candidate].population {
				candidate = index
			}
		}
		if candidate < 0 {
			break
		}

		left, right := splitColorBox(boxes[candidate])
		boxes[candidate] = left
		boxes = append(boxes, right)
	}

	return boxes
}

func newColorBox(bins []colorBin) colorBox {
	box := colorBox{
		bins: bins,
		min:  [3]uint8{255, 255, 255},
	}

	for _, bin := range bins {
		box.population += bin.count
		for axis, value := range [3]uint8{bin.rq, bin.gq, bin.bq} {
			box.min[axis] = min(box.min[axis], value)
			box.max[axis] = max(box.max[axis], value)
		}
	}

	return box
}

func (b colorBox) canSplit() bool {
	return len(b.bins) > 1
}

func splitColorBox(box colorBox) (colorBox, colorBox) {
	axis := 0
	for candidate := 1; candidate < 3; candidate++ {
		if box.max[candidate]-box.min[candidate] > box.max[axis]-box.min[axis] {
			axis = candidate
		}
	}

	ordered := append([]colorBin(nil), box.bins...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return axisValue(ordered[i], axis) < axisValue(ordered[j], axis)
	})

	splitIndex := len(ordered) / 2
	cumulative := 0
	for index, bin := range ordered {
		cumulative += bin.count
		if cumulative*2 >= box.population {
			splitIndex = index + 1
			break
		}
	}
	splitIndex = clampInt(splitIndex, 1, len(ordered)-1)

	return newColorBox(ordered[:splitIndex]), newColorBox(ordered[splitIndex:])
}

func axisValue(bin colorBin, axis int) uint8 {
	switch axis {
	case 0:
		return bin.rq
	case 1:
		return bin.gq
	default:
		return bin.bq
	}
}

func boxesToSwatches(boxes []colorBox) []swatch {
	swatches := make([]swatch, 0, len(boxes))
	for _, box := range boxes {
		if box.population <= 0 {
			continue
		}

		var rSum, gSum, bSum int
		for _, bin := range box.bins {
			rSum += int(bin.r) * bin.count
			gSum += int(bin.g) * bin.count
			bSum += int(bin.b) * bin.count
		}

		swatches = append(swatches, newSwatch(
			uint8(rSum/box.population),
			uint8(gSum/box.population),
			uint8(bSum/box.population),
			box.population,
		))
	}

	sort.SliceStable(swatches, func(i, j int) bool {
		return swatches[i].population > swatches[j].population
	})

	return swatches
}

func newSwatch(r uint8, g uint8, b uint8, population int) swatch {
	value := colorful.Color{R: float64(r) / 255, G: float64(g) / 255, B: float64(b) / 255}
	hue, saturation, lightness := value.Hsl()
	return swatch{
		color:      value,
		population: population,
		hue:        hue,
		saturation: saturation,
		lightness:  lightness,
	}
}

func deduplicateSwatches(swatches []swatch, threshold float64) []swatch {
	unique := make([]swatch, 0, len(swatches))
	for _, candidate := range swatches {
		merged := false
		for index := range unique {
			if unique[index].color.DistanceLab(candidate.color)*100 <= threshold {
				unique[index].population += candidate.population
				merged = true
				break
			}
		}
		if !merged {
			unique = append(unique, candidate)
		}
	}
	return unique
}

func averageColor(bins []colorBin) swatch {
	var rSum, gSum, bSum, total int
	for _, bin := range bins {
		rSum += int(bin.r) * bin.count
		gSum += int(bin.g) * bin.count
		bSum += int(bin.b) * bin.count
		total += bin.count
	}
	if total == 0 {
		return swatch{}
	}
	return newSwatch(uint8(rSum/total), uint8(gSum/total), uint8(bSum/total), total)
}

func clampInt(value int, minimum int, maximum int) int {
	if value < minimum {
		return minimum
	}
	if value > maximum {
		return maximum
	}
	return value
}
