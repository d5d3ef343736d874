package ocr

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const signTSV = "level\tpage_num\tblock_num\tpar_num\tline_num\tword_num\tleft\ttop\twidth\theight\tconf\ttext\n" +
	"1\t1\t0\t0\t0\t0\t0\t0\t800\t600\t-1\t\n" +
	"4\t1\t1\t1\t1\t0\t40\t30\t500\t60\t-1\t\n" +
	"5\t1\t1\t1\t1\t1\t40\t30\t40\t60\t96.5\t2\n" +
	"5\t1\t1\t1\t1\t2\t90\t30\t150\t60\t91.5\tHOUR\n" +
	"5\t1\t1\t1\t1\t3\t250\t30\t200\t60\t88\tPARKING\n" +
	"5\t1\t1\t1\t2\t1\t40\t100\t300\t60\t80\t8AM-6PM\n" +
	"5\t1\t1\t1\t2\t2\t360\t100\t10\t60\t-1\t \n" +
	"5\t1\t1\t1\t3\t1\t40\t170\t240\t60\t84\tMON-FRI\n"

// fakeRunner records invocations and answers with canned output.
type fakeRunner struct {
	calls  [][]string
	output []byte
	err    error
	image  []byte
}

func (f *fakeRunner) run(_ context.Context, name string, args ...string) ([]byte, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	if len(args) > 0 && args[0] != "--version" && args[0] != "--list-langs" {
		f.image, _ = os.ReadFile(args[0])
	}
	return f.output, f.err
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()
	assert.Equal(t, "tesseract", config.TesseractPath)
	assert.Equal(t, "", config.DataPath)
	assert.Equal(t, "eng", config.Languages)
	assert.True(t, config.Preprocess)
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("PARKSENSE_OCR_TESSERACT_PATH", "/opt/tesseract")
	t.Setenv("PARKSENSE_OCR_TESSDATA_PATH", "")
	t.Setenv("PARKSENSE_OCR_LANGUAGES", "eng+fra")
	t.Setenv("PARKSENSE_OCR_RATE_LIMIT", "0.5")
	t.Setenv("PARKSENSE_OCR_RAW_IMAGE", "true")

	config := ConfigFromEnv()
	assert.Equal(t, "/opt/tesseract", config.TesseractPath)
	assert.Equal(t, "eng+fra", config.Languages)
	assert.Equal(t, 0.5, config.RateLimit)
	assert.False(t, config.Preprocess)
}

func TestParseTSV(t *testing.T) {
	result, err := ParseTSV([]byte(signTSV))
	require.NoError(t, err)

	assert.Equal(t, "2 HOUR PARKING\n8AM-6PM\nMON-FRI", result.Text)
	require.Len(t, result.Lines, 3)
	assert.Len(t, result.Lines[0].Words, 3)
	assert.Equal(t, Box{X: 90, Y: 30, Width: 150, Height: 60}, result.Lines[0].Words[1].BoundingBox)
	assert.InDelta(t, 0.88, result.Confidence, 1e-9)
	assert.InDelta(t, 0.88, result.Quality(), 1e-9)
}

func TestParseTSV_Invalid(t *testing.T) {
	_, err := ParseTSV([]byte("not tsv"))
	assert.Error(t, err)

	_, err = ParseTSV([]byte("level\tpage_num\n5\t1\t1\t1\t1\t1\tx\t0\t0\t0\t90\tA\n"))
	assert.Error(t, err)

	result, err := ParseTSV([]byte("level\tpage_num\n"))
	require.NoError(t, err)
	assert.Zero(t, result.Quality())
	assert.Error(t, result.Validate())
}

func TestClient_Read(t *testing.T) {
	fake := &fakeRunner{output: []byte(signTSV)}
	client := NewClientWithRunner(&Config{TesseractPath: "tess", Languages: "eng", DataPath: "/data"}, fake.run)

	text, quality, err := client.ReadText(context.Background(), []byte("raw-bytes"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, "2 HOUR PARKING\n8AM-6PM\nMON-FRI", text)
	assert.InDelta(t, 0.88, quality, 1e-9)

	require.Len(t, fake.calls, 1)
	call := fake.calls[0]
	assert.Equal(t, "tess", call[0])
	assert.Equal(t, []string{"stdout", "-l", "eng", "--tessdata-dir", "/data", "tsv"}, call[2:])
	assert.Equal(t, []byte("raw-bytes"), fake.image)
	assert.NoFileExists(t, call[1])
}

func TestClient_ReadPreprocesses(t *testing.T) {
	fake := &fakeRunner{output: []byte(signTSV)}
	client := NewClientWithRunner(&Config{TesseractPath: "tess", Preprocess: true}, fake.run)

	_, err := client.Read(context.Background(), encodePNG(t, 200, 100), "image/png")
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(fake.image))
	require.NoError(t, err)
	assert.Equal(t, minWidth, img.Bounds().Dx())
}

func TestClient_ReadErrors(t *testing.T) {
	client := NewClientWithRunner(nil, (&fakeRunner{}).run)
	_, err := client.Read(context.Background(), []byte("x"), "application/pdf")
	assert.True(t, errors.Is(err, ErrUnsupportedMedia))

	failing := &fakeRunner{err: errors.New("exit status 1")}
	client = NewClientWithRunner(&Config{TesseractPath: "tess"}, failing.run)
	_, err = client.Read(context.Background(), []byte("x"), "image/jpeg")
	assert.True(t, errors.Is(err, ErrUnavailable))
	assert.False(t, client.IsAvailable(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = client.Read(ctx, []byte("x"), "image/jpeg")
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrUnavailable))
}

func TestClient_VersionAndLanguages(t *testing.T) {
	fake := &fakeRunner{output: []byte("tesseract 5.3.4\n leptonica-1.84.1\n")}
	client := NewClientWithRunner(&Config{TesseractPath: "tess"}, fake.run)

	version, err := client.GetVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tesseract 5.3.4", version)

	fake.output = []byte("List of available languages in \"/usr/share/tessdata/\" (2):\neng\nosd\n")
	langs, err := client.GetAvailableLanguages(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"eng", "osd"}, langs)
	assert.Equal(t, "Orientation and script detection", GetLanguageName(langs[1]))
	assert.Equal(t, "xyz", GetLanguageName("xyz"))
}

func TestIsSupported(t *testing.T) {
	client := NewClient(nil)
	for _, mimeType := range []string{"image/png", "IMAGE/JPG", "image/jpeg; charset=binary", "image/webp"} {
		assert.True(t, client.IsSupported(mimeType), mimeType)
	}
	for _, mimeType := range []string{"application/pdf", "text/plain", ""} {
		assert.False(t, client.IsSupported(mimeType), mimeType)
	}
}

func TestFormatOutput(t *testing.T) {
	result := &Result{Text: "NO PARKING ANYTIME", Confidence: 0.9, Languages: "eng"}

	output, err := FormatOutput(result, "")
	require.NoError(t, err)
	assert.Equal(t, "NO PARKING ANYTIME", output)

	output, err = FormatOutput(result, "json")
	require.NoError(t, err)
	assert.Contains(t, output, `"word_count": 3`)
	assert.Contains(t, output, `"languages": "eng"`)

	_, err = FormatOutput(result, "xml")
	assert.True(t, err != nil && strings.Contains(err.Error(), "unsupported"))
}

func TestPreprocess_Invalid(t *testing.T) {
	_, err := Preprocess([]byte("not an image"))
	assert.Error(t, err)
}

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}
