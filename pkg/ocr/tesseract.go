package ocr

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultLanguages covers simplified Chinese receipts with Latin brand names.
const DefaultLanguages = "chi_sim+eng"

// Tesseract recognizes images by running the tesseract command line tool
// with TSV output.
type Tesseract struct {
	binary    string
	languages string
	logger    *slog.Logger
}

// NewTesseract returns a Tesseract recognizer. Empty arguments select
// "tesseract" from PATH and DefaultLanguages.
func NewTesseract(binary, languages string, logger *slog.Logger) *Tesseract {
	if binary == "" {
		binary = "tesseract"
	}
	if languages == "" {
		languages = DefaultLanguages
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Tesseract{
		binary:    binary,
		languages: languages,
		logger:    logger.With("component", "ocr"),
	}
}

// Recognize runs tesseract on imagePath and returns one observation per text line.
func (t *Tesseract) Recognize(ctx context.Context, imagePath string) ([]Observation, error) {
	info, err := os.Stat(imagePath)
	if err != nil || info.IsDir() || info.Size() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidImage, imagePath)
	}

	bin, err := exec.LookPath(t.binary)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrEngineNotFound, t.binary)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, imagePath, "stdout", "-l", t.languages, "tsv")
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		t.logger.Warn("tesseract failed", "image", imagePath, "error", err, "stderr", strings.TrimSpace(stderr.String()))
		return nil, fmt.Errorf("%w: %w", ErrProcessingFailed, err)
	}

	obs, err := ParseTSV(&stdout)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProcessingFailed, err)
	}
	if len(obs) == 0 {
		return nil, ErrNoTextFound
	}

	t.logger.Debug("recognized image", "image", imagePath, "lines", len(obs))
	return obs, nil
}

type lineKey struct {
	page, block, par, line int
}

type lineAcc struct {
	text     strings.Builder
	confSum  float64
	words    int
	lastRune rune
}

// ParseTSV reads tesseract TSV output and groups word rows into lines in
// reading order. Line confidence is the mean word confidence scaled to [0, 1].
func ParseTSV(r io.Reader) ([]Observation, error) {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading tsv header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}
	for _, name := range []string{"level", "page_num", "block_num", "par_num", "line_num", "conf", "text"} {
		if _, ok := col[name]; !ok {
			return nil, fmt.Errorf("tsv header is missing %q", name)
		}
	}

	var (
		order []lineKey
		lines = make(map[lineKey]*lineAcc)
	)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading tsv: %w", err)
		}
		if len(rec) <= col["text"] {
			continue
		}

		// Level 5 rows are words; the others describe layout.
		if rec[col["level"]] != "5" {
			continue
		}
		word := strings.TrimSpace(rec[col["text"]])
		conf, err := strconv.ParseFloat(rec[col["conf"]], 64)
		if word == "" || err != nil || conf < 0 {
			continue
		}

		key := lineKey{
			page:  atoi(rec[col["page_num"]]),
			block: atoi(rec[col["block_num"]]),
			par:   atoi(rec[col["par_num"]]),
			line:  atoi(rec[col["line_num"]]),
		}
		acc, ok := lines[key]
		if !ok {
			acc = &lineAcc{}
			lines[key] = acc
			order = append(order, key)
		}
		first, _ := utf8.DecodeRuneInString(word)
		if acc.words > 0 && needsSpace(acc.lastRune, first) {
			acc.text.WriteByte(' ')
		}
		acc.text.WriteString(word)
		acc.lastRune, _ = utf8.DecodeLastRuneInString(word)
		acc.confSum += conf
		acc.words++
	}

	obs := make([]Observation, 0, len(order))
	for _, key := range order {
		acc := lines[key]
		obs = append(obs, Observation{
			Text:       acc.text.String(),
			Confidence: acc.confSum / float64(acc.words) / 100,
		})
	}
	return obs, nil
}

// needsSpace keeps Han text contiguous, since tesseract reports each
// character as its own word, while separating Latin words and numbers.
func needsSpace(prev, next rune) bool {
	return !unicode.Is(unicode.Han, prev) && !unicode.Is(unicode.Han, next)
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
