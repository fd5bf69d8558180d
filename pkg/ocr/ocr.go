// Package ocr turns receipt screenshots into text lines for the parser.
package ocr

import (
	"context"
	"errors"
	"sort"
	"strings"
)

// Recognition failures. Their text is shown to users as is.
var (
	ErrInvalidImage     = errors.New("无效的图片")
	ErrNoTextFound      = errors.New("未找到可识别的文字")
	ErrProcessingFailed = errors.New("图片处理失败")
	ErrEngineNotFound   = errors.New("未找到OCR引擎")
)

// Observation is one recognized line and the engine's confidence in it, in [0, 1].
type Observation struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// Recognizer extracts text lines from an image file.
type Recognizer interface {
	Recognize(ctx context.Context, imagePath string) ([]Observation, error)
}

// Join orders observations by descending confidence, keeping reading order
// among equals, and joins their text with newlines.
func Join(obs []Observation) string {
	sorted := make([]Observation, len(obs))
	copy(sorted, obs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Confidence > sorted[j].Confidence
	})

	lines := make([]string, 0, len(sorted))
	for _, o := range sorted {
		lines = append(lines, o.Text)
	}
	return strings.Join(lines, "\n")
}
