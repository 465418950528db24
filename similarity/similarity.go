// Package similarity scores how alike two photos are. It is one input to
// the entrance decision, never an authority: the gateway decides what to do
// with the score, and mid-range scores always go to a human.
//
// The score combines a perceptual average-hash distance with a grayscale
// histogram intersection. Swapping in a stronger model only has to honor
// Score's contract; the gateway's state machine does not change.
package similarity

import (
	"bytes"
	"fmt"
	"image"
	"image/color"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
)

const (
	hashSize      = 8
	histogramBins = 32
	hashWeight    = 0.6
	histWeight    = 0.4
)

type Class string

const (
	ClassAutoApprove    Class = "auto_approve"
	ClassManualReview   Class = "manual_review"
	ClassLikelyMismatch Class = "likely_mismatch"
)

type Thresholds struct {
	AutoApprove  float64
	ManualReview float64
}

// DefaultThresholds applies when neither the instance config nor the event
// overrides them.
var DefaultThresholds = Thresholds{AutoApprove: 0.65, ManualReview: 0.40}

// Decode parses photo bytes handed over by the storage collaborator.
func Decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode photo: %w", err)
	}
	return img, nil
}

// Score returns a confidence in [0,1] that the two photos show the same
// subject. Identical images score 1.
func Score(reference, live image.Image) float64 {
	refGray := downsampleGray(reference, hashSize, hashSize)
	liveGray := downsampleGray(live, hashSize, hashSize)

	hashScore := 1 - float64(hammingDistance(averageHash(refGray), averageHash(liveGray)))/float64(hashSize*hashSize)
	histScore := histogramIntersection(grayHistogram(reference), grayHistogram(live))

	score := hashWeight*hashScore + histWeight*histScore
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// Classify buckets a score against the configured bands.
func Classify(score float64, t Thresholds) Class {
	if t.AutoApprove <= 0 {
		t.AutoApprove = DefaultThresholds.AutoApprove
	}
	if t.ManualReview <= 0 {
		t.ManualReview = DefaultThresholds.ManualReview
	}

	switch {
	case score >= t.AutoApprove:
		return ClassAutoApprove
	case score >= t.ManualReview:
		return ClassManualReview
	default:
		return ClassLikelyMismatch
	}
}

// downsampleGray box-samples the image into a w x h luminance grid.
func downsampleGray(img image.Image, w, h int) []float64 {
	bounds := img.Bounds()
	out := make([]float64, w*h)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			srcX := bounds.Min.X + x*bounds.Dx()/w
			srcY := bounds.Min.Y + y*bounds.Dy()/h
			out[y*w+x] = luminance(img.At(srcX, srcY))
		}
	}

	return out
}

func averageHash(gray []float64) uint64 {
	var sum float64
	for _, v := range gray {
		sum += v
	}
	mean := sum / float64(len(gray))

	var hash uint64
	for i, v := range gray {
		if v > mean {
			hash |= 1 << uint(i)
		}
	}
	return hash
}

func hammingDistance(a, b uint64) int {
	x := a ^ b
	count := 0
	for x != 0 {
		x &= x - 1
		count++
	}
	return count
}

func grayHistogram(img image.Image) []float64 {
	hist := make([]float64, histogramBins)
	bounds := img.Bounds()

	total := float64(bounds.Dx() * bounds.Dy())
	if total == 0 {
		return hist
	}

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			bin := int(luminance(img.At(x, y)) * float64(histogramBins))
			if bin >= histogramBins {
				bin = histogramBins - 1
			}
			hist[bin]++
		}
	}

	for i := range hist {
		hist[i] /= total
	}
	return hist
}

func histogramIntersection(a, b []float64) float64 {
	var sum float64
	for i := range a {
		if a[i] < b[i] {
			sum += a[i]
		} else {
			sum += b[i]
		}
	}
	return sum
}

func luminance(c color.Color) float64 {
	r, g, b, _ := c.RGBA()
	return (0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)) / 65535
}
