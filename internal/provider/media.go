package provider

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"strconv"
	"strings"

	"github.com/nbykov/go-bedrockgw/internal/config"
	"github.com/nbykov/go-bedrockgw/internal/types"
)

const (
	// maxRandomSeed bounds randomized seeds for image generation.
	maxRandomSeed = 214783647

	defaultNegativePrompt = "blurry, distorted, low resolution, pixelated, overexposed, underexposed, dark, grainy, noisy, watermark"
)

// IsVideoModel reports whether the model produces asynchronous video jobs.
func IsVideoModel(model string) bool {
	return strings.Contains(model, "amazon.nova-reel")
}

// FormatImageRequest builds the request body for one of the four media
// families. Unknown media models are an error, unlike chat dispatch.
func FormatImageRequest(p types.MediaParams) ([]byte, error) {
	var body any
	switch {
	case strings.Contains(p.Model, "stability"):
		body = stabilityBody(p)
	case IsVideoModel(p.Model):
		body = novaReelBody(p)
	case strings.Contains(p.Model, "amazon.titan-image"):
		body = titanImageBody(p)
	case strings.Contains(p.Model, "amazon.nova-canvas"):
		body = novaCanvasBody(p)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedImageModel, p.Model)
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal media request: %w", err)
	}
	return raw, nil
}

func stabilityBody(p types.MediaParams) map[string]any {
	aspect := p.AspectRatio
	if aspect == "" {
		aspect = "1:1"
	}
	format := p.OutputFormat
	if format == "" {
		format = "png"
	}
	return map[string]any{
		"prompt":          p.Prompt,
		"negative_prompt": p.NegativePrompt,
		"mode":            "text-to-image",
		"seed":            p.Seed,
		"aspect_ratio":    aspect,
		"output_format":   format,
	}
}

func novaReelBody(p types.MediaParams) map[string]any {
	textParams := map[string]any{"text": p.Prompt}
	if len(p.Images) > 0 {
		format := p.Images[0].Format
		if format == "" {
			format = "jpeg"
		}
		textParams["images"] = []map[string]any{{
			"format": format,
			"source": map[string]any{"bytes": p.Images[0].Base64},
		}}
	}
	s3URI := p.S3OutputPath
	if s3URI == "" {
		s3URI = config.DefaultVideoOutputURI
	}
	return map[string]any{
		"body": map[string]any{
			"taskType":          "TEXT_VIDEO",
			"textToVideoParams": textParams,
			"videoGenerationConfig": map[string]any{
				"durationSeconds": 6,
				"fps":             24,
				"dimension":       "1280x720",
				"seed":            defaultInt(p.Seed, 12),
			},
		},
		"outputConfig": map[string]any{
			"s3OutputDataConfig": map[string]any{"s3Uri": s3URI},
		},
	}
}

func titanImageBody(p types.MediaParams) map[string]any {
	width, height := parseSize(p.Size, 1280, 768)
	return map[string]any{
		"taskType": "TEXT_IMAGE",
		"textToImageParams": map[string]any{
			"text":         p.Prompt,
			"negativeText": orDefault(p.NegativePrompt, defaultNegativePrompt),
		},
		"imageGenerationConfig": map[string]any{
			"numberOfImages": defaultInt(p.NumberOfImages, 1),
			"quality":        orDefault(p.Quality, "standard"),
			"height":         height,
			"width":          width,
			"cfgScale":       clampCfgScale(p.CfgScale),
			"seed":           seedOrRandom(p.Seed),
		},
	}
}

func novaCanvasBody(p types.MediaParams) map[string]any {
	width, height := parseSize(p.Size, 1024, 1024)
	return map[string]any{
		"taskType": "TEXT_IMAGE",
		"textToImageParams": map[string]any{
			"text":         p.Prompt,
			"negativeText": orDefault(p.NegativePrompt, defaultNegativePrompt),
		},
		"imageGenerationConfig": map[string]any{
			"width":          width,
			"height":         height,
			"quality":        orDefault(p.Quality, "standard"),
			"seed":           seedOrRandom(p.Seed),
			"numberOfImages": defaultInt(p.NumberOfImages, 1),
		},
	}
}

// parseSize splits a "WxH" string, substituting the family defaults for
// missing or unparseable dimensions.
func parseSize(size string, defWidth, defHeight int) (width, height int) {
	width, height = defWidth, defHeight
	parts := strings.SplitN(size, "x", 2)
	if len(parts) != 2 {
		return width, height
	}
	if w, err := strconv.Atoi(strings.TrimSpace(parts[0])); err == nil && w > 0 {
		width = w
	}
	if h, err := strconv.Atoi(strings.TrimSpace(parts[1])); err == nil && h > 0 {
		height = h
	}
	return width, height
}

func clampCfgScale(v float64) float64 {
	if v == 0 {
		v = 7.5
	}
	return min(max(v, 1.1), 10.0)
}

func seedOrRandom(seed int) int {
	if seed != 0 {
		return seed
	}
	return rand.Intn(maxRandomSeed)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
