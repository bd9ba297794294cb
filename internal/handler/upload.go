package handler

import (
	"bytes"
	"errors"
	"io"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gofiber/fiber/v2"
)

const defaultMaxUploadSize = 10 << 20

var (
	errUploadMissing  = errors.New("file is required")
	errUploadTooLarge = errors.New("file exceeds upload limit")
	errUploadNotText  = errors.New("file must be a CSV or plain-text export")
)

// readTextUpload loads a multipart file into memory and rejects anything that
// does not sniff as text.
func readTextUpload(c *fiber.Ctx, field string, maxSize int64) ([]byte, error) {
	header, err := c.FormFile(field)
	if err != nil {
		return nil, errUploadMissing
	}
	if maxSize <= 0 {
		maxSize = defaultMaxUploadSize
	}
	if header.Size > maxSize {
		return nil, errUploadTooLarge
	}

	handle, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer handle.Close()

	buf := bytes.NewBuffer(nil)
	if _, err := io.Copy(buf, io.LimitReader(handle, maxSize+1)); err != nil {
		return nil, err
	}
	if int64(buf.Len()) > maxSize {
		return nil, errUploadTooLarge
	}
	if buf.Len() > 0 && !isText(mimetype.Detect(buf.Bytes())) {
		return nil, errUploadNotText
	}
	return buf.Bytes(), nil
}

func isText(mime *mimetype.MIME) bool {
	for m := mime; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}

func uploadStatus(err error) int {
	switch {
	case errors.Is(err, errUploadTooLarge):
		return fiber.StatusRequestEntityTooLarge
	case errors.Is(err, errUploadMissing), errors.Is(err, errUploadNotText):
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}
