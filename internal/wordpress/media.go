package wordpress

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"image/png"
	"net/http"
	"strconv"
	"strings"
)

const jpegQuality = 90

// UploadImage downloads sourceURL, converts PNGs to JPEG and attaches the result
// to the floor. It returns the attachment id.
func (c *Client) UploadImage(ctx context.Context, sourceURL string, floorID int64) (int64, error) {
	data, contentType, err := c.http.Fetch(ctx, sourceURL)
	if err != nil {
		return 0, fmt.Errorf("download image: %w", err)
	}

	ext := extensionFor(contentType)
	if converted, ok := toJPEG(data); ok {
		data, contentType, ext = converted, "image/jpeg", "jpg"
	} else {
		c.logger.WithField("content_type", contentType).Debug("Image not converted, uploading original bytes")
	}
	if contentType == "" {
		contentType = "image/" + ext
	}
	filename := "dalle-image-" + c.now().Format("20060102150405") + "." + ext

	var out struct {
		ID int64 `json:"id"`
	}
	target := c.endpoint("/wp/v2/media?post=" + strconv.FormatInt(floorID, 10))
	_, err = c.http.DoJSON(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		req.SetBasicAuth(c.cfg.User, c.cfg.Password)
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("Content-Disposition", `attachment; filename="`+filename+`"`)
		return req, nil
	}, &out)
	if err != nil {
		return 0, fmt.Errorf("upload media for floor %d: %w", floorID, err)
	}
	if out.ID == 0 {
		return 0, fmt.Errorf("upload media for floor %d: response carried no id", floorID)
	}
	return out.ID, nil
}

// toJPEG flattens a PNG onto white and encodes it as JPEG. ok is false when the
// input is not a decodable PNG.
func toJPEG(data []byte) ([]byte, bool) {
	src, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, false
	}
	bounds := src.Bounds()
	dst := image.NewRGBA(bounds)
	draw.Draw(dst, bounds, image.White, image.Point{}, draw.Src)
	draw.Draw(dst, bounds, src, bounds.Min, draw.Over)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, false
	}
	return buf.Bytes(), true
}

func extensionFor(contentType string) string {
	mediaType, _, _ := strings.Cut(contentType, ";")
	switch strings.TrimSpace(strings.ToLower(mediaType)) {
	case "image/jpeg", "image/jpg":
		return "jpg"
	case "image/webp":
		return "webp"
	case "image/gif":
		return "gif"
	default:
		return "png"
	}
}
