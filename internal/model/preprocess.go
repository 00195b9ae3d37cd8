package model

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"sort"

	"github.com/nfnt/resize"
)

// decodeImage decodes JPEG or PNG bytes.
func decodeImage(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// preprocessImage resizes img to size x size and scales every RGB channel
// into [-1, 1], the input range MobileNetV2 was trained on. Alpha is dropped.
func preprocessImage(img image.Image, size int, layout string) []float32 {
	resized := resize.Resize(uint(size), uint(size), img, resize.Bilinear)

	bounds := resized.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	plane := width * height

	inputData := make([]float32, 3*plane)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b, _ := resized.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()

			rgb := [3]float32{
				scaleChannel(r),
				scaleChannel(g),
				scaleChannel(b),
			}

			pixelIndex := y*width + x
			for c, v := range rgb {
				if layout == LayoutNCHW {
					inputData[c*plane+pixelIndex] = v
				} else {
					inputData[pixelIndex*3+c] = v
				}
			}
		}
	}

	return inputData
}

// scaleChannel maps a 16-bit color channel to [-1, 1].
func scaleChannel(v uint32) float32 {
	return float32(v>>8)/127.5 - 1
}

func softmax(scores []float32) []float32 {
	if len(scores) == 0 {
		return nil
	}
	maxVal := scores[0]
	for _, s := range scores[1:] {
		if s > maxVal {
			maxVal = s
		}
	}

	out := make([]float32, len(scores))
	var sum float64
	for i, s := range scores {
		e := math.Exp(float64(s - maxVal))
		out[i] = float32(e)
		sum += e
	}
	for i := range out {
		out[i] = float32(float64(out[i]) / sum)
	}
	return out
}

// rankPredictions returns at most maxResults labels ordered by descending
// score, keeping only those at or above threshold. Negative scores are
// always dropped.
func rankPredictions(scores []float32, labels []Label, maxResults int, threshold float64) []Prediction {
	n := len(scores)
	if len(labels) < n {
		n = len(labels)
	}

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return scores[idx[a]] > scores[idx[b]]
	})

	if maxResults > 0 && len(idx) > maxResults {
		idx = idx[:maxResults]
	}

	predictions := make([]Prediction, 0, len(idx))
	for _, i := range idx {
		confidence := float64(scores[i])
		if confidence < 0 || confidence < threshold {
			continue
		}
		if confidence > 1 {
			confidence = 1
		}
		predictions = append(predictions, Prediction{
			ClassID:    labels[i].ID,
			ClassName:  labels[i].Name,
			Confidence: confidence,
		})
	}
	return predictions
}
