package ocr

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Result represents the OCR result with metadata
type Result struct {
	Text string `json:"text"`
	// Confidence is the mean word confidence in [0, 1].
	Confidence float64 `json:"confidence"`
	Languages  string  `json:"languages,omitempty"`
	Lines      []Line  `json:"lines,omitempty"`
}

// Word represents a single word with position
type Word struct {
	Text        string  `json:"text"`
	Confidence  float64 `json:"confidence"`
	BoundingBox Box     `json:"bounding_box"`
}

// Line represents a line of text
type Line struct {
	Text  string `json:"text"`
	Words []Word `json:"words,omitempty"`
}

// Box represents a bounding box
type Box struct {
	X      int32 `json:"x"`
	Y      int32 `json:"y"`
	Width  int32 `json:"width"`
	Height int32 `json:"height"`
}

// Quality returns the confidence as a hint for rule extraction, or zero when
// no word was recognized.
func (r *Result) Quality() float64 {
	if r.Confidence <= 0 {
		return 0
	}
	if r.Confidence > 1 {
		return 1
	}
	return r.Confidence
}

// MarshalJSON implements custom JSON marshaling
func (r *Result) MarshalJSON() ([]byte, error) {
	type Alias Result
	return json.Marshal(&struct {
		WordCount int `json:"word_count"`
		*Alias
	}{
		WordCount: len(strings.Fields(r.Text)),
		Alias:     (*Alias)(r),
	})
}

// Validate validates the OCR result
func (r *Result) Validate() error {
	if strings.TrimSpace(r.Text) == "" {
		return errors.New("OCR result is empty")
	}
	return nil
}

// TSV columns as written by `tesseract ... tsv`.
const (
	tsvLevel = iota
	tsvPage
	tsvBlock
	tsvPar
	tsvLine
	tsvWord
	tsvLeft
	tsvTop
	tsvWidth
	tsvHeight
	tsvConf
	tsvText
	tsvColumns
)

// wordLevel is the TSV level of recognized words.
const wordLevel = 5

// ParseTSV reads Tesseract TSV output into lines of words. Words with a
// negative confidence are layout rows and are ignored.
func ParseTSV(data []byte) (*Result, error) {
	rows := strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")
	if len(rows) == 0 || !strings.HasPrefix(rows[0], "level") {
		return nil, errors.New("tesseract TSV output has no header")
	}

	type lineKey struct{ page, block, par, line int }
	var (
		result  = &Result{}
		order   []lineKey
		byKey   = make(map[lineKey]*Line)
		confSum float64
		words   int
	)

	for n, row := range rows[1:] {
		if row == "" {
			continue
		}
		cols := strings.SplitN(row, "\t", tsvColumns)
		if len(cols) < tsvColumns {
			continue
		}
		ints, err := atois(cols[:tsvConf])
		if err != nil {
			return nil, errors.Wrapf(err, "tesseract TSV row %d", n+2)
		}
		if ints[tsvLevel] != wordLevel {
			continue
		}
		conf, err := strconv.ParseFloat(cols[tsvConf], 64)
		if err != nil {
			return nil, errors.Wrapf(err, "tesseract TSV row %d", n+2)
		}
		text := strings.TrimSpace(cols[tsvText])
		if conf < 0 || text == "" {
			continue
		}

		key := lineKey{ints[tsvPage], ints[tsvBlock], ints[tsvPar], ints[tsvLine]}
		line, ok := byKey[key]
		if !ok {
			line = &Line{}
			byKey[key] = line
			order = append(order, key)
		}
		line.Words = append(line.Words, Word{
			Text:       text,
			Confidence: conf / 100,
			BoundingBox: Box{
				X:      int32(ints[tsvLeft]),
				Y:      int32(ints[tsvTop]),
				Width:  int32(ints[tsvWidth]),
				Height: int32(ints[tsvHeight]),
			},
		})
		confSum += conf / 100
		words++
	}

	texts := make([]string, 0, len(order))
	for _, key := range order {
		line := byKey[key]
		parts := make([]string, len(line.Words))
		for i, w := range line.Words {
			parts[i] = w.Text
		}
		line.Text = strings.Join(parts, " ")
		result.Lines = append(result.Lines, *line)
		texts = append(texts, line.Text)
	}
	result.Text = strings.Join(texts, "\n")
	if words > 0 {
		result.Confidence = confSum / float64(words)
	}
	return result, nil
}

func atois(cols []string) ([]int, error) {
	out := make([]int, len(cols))
	for i, c := range cols {
		v, err := strconv.Atoi(strings.TrimSpace(c))
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
