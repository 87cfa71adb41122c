// Package upload reads image files from multipart requests.
package upload

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

var ALLOWED_TYPES = []string{"image/jpeg", "image/png", "image/webp"}

var (
	ErrInvalidForm = errors.New("invalid multipart form")
	ErrNoFile      = errors.New("no file in form")
	ErrTooLarge    = errors.New("request body too large")
)

type File struct {
	Data     []byte
	MimeType string
	Ext      string
	Name     string
}

// Allowed reports whether the sniffed type is jpeg, png or webp.
func (f *File) Allowed() bool {
	return mimetype.EqualsAny(f.MimeType, ALLOWED_TYPES...)
}

func (f *File) Size() int64 {
	return int64(len(f.Data))
}

// Form parses a multipart body of at most bodyLimit bytes. An oversized
// body is reported as ErrTooLarge.
func Form(w http.ResponseWriter, r *http.Request, bodyLimit int64) error {

	r.Body = http.MaxBytesReader(w, r.Body, bodyLimit)
	if err := r.ParseMultipartForm(bodyLimit); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return ErrTooLarge
		}
		return errors.Join(ErrInvalidForm, err)
	}

	return nil

}

// ReadFile reads field from an already parsed form. The type is sniffed from
// the content, the client supplied header is ignored.
func ReadFile(r *http.Request, field string) (*File, error) {

	file, header, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, ErrNoFile
		}
		return nil, errors.Join(ErrInvalidForm, err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}

	mtype := mimetype.Detect(data)
	return &File{
		Data:     data,
		MimeType: mtype.String(),
		Ext:      strings.TrimPrefix(mtype.Extension(), "."),
		Name:     header.Filename,
	}, nil

}
