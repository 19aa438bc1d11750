package server

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/dharsanguruparan/LineReport/internal/model"
)

var (
	errPhotoTooLarge   = errors.New("photo exceeds size limit")
	errPhotoType       = errors.New("photo type not allowed")
	errPhotoExtension  = errors.New("photo extension not allowed")
	errPhotoUnreadable = errors.New("photo could not be read")
)

var photoExtensions = []string{".jpg", ".jpeg", ".png"}

// readPhoto returns the optional photo attached to the submit. A request
// without a file, or with an empty one, yields nil.
func (s *Server) readPhoto(c *gin.Context) (*model.Photo, error) {
	header, err := c.FormFile("photo")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", errPhotoUnreadable, err)
	}
	if header.Size > s.cfg.MaxPhotoBytes {
		return nil, errPhotoTooLarge
	}
	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !slices.Contains(photoExtensions, ext) {
		return nil, errPhotoExtension
	}

	f, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errPhotoUnreadable, err)
	}
	defer f.Close()

	var data bytes.Buffer
	buf := make([]byte, 32*1024)
	for {
		n, readErr := f.Read(buf)
		if n > 0 {
			if int64(data.Len()+n) > s.cfg.MaxPhotoBytes {
				return nil, errPhotoTooLarge
			}
			data.Write(buf[:n])
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				break
			}
			return nil, fmt.Errorf("%w: %v", errPhotoUnreadable, readErr)
		}
	}
	if data.Len() == 0 {
		return nil, nil
	}

	sniff := data.Bytes()
	if len(sniff) > 512 {
		sniff = sniff[:512]
	}
	contentType := http.DetectContentType(sniff)
	if !slices.Contains(s.cfg.AllowedTypes, contentType) {
		return nil, fmt.Errorf("%w: %s", errPhotoType, contentType)
	}
	return &model.Photo{
		Name:        filepath.Base(header.Filename),
		ContentType: contentType,
		Data:        data.Bytes(),
	}, nil
}

func photoMessage(err error) string {
	switch {
	case errors.Is(err, errPhotoTooLarge):
		return "La foto supera el tamaño máximo permitido."
	case errors.Is(err, errPhotoType), errors.Is(err, errPhotoExtension):
		return "La foto debe ser una imagen JPG o PNG."
	default:
		return "No se pudo leer la foto adjunta."
	}
}
