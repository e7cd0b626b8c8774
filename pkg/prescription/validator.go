package prescription

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/mediscanner/api/pkg/common/models"
)

var (
	errNoImages        = errors.New("no prescription URLs provided. Please upload at least one image")
	errInvalidFileType = errors.New("invalid file type")
	errMissingURL      = errors.New("missing image url")
)

// DefaultExtensions are the image types accepted for upload.
var DefaultExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp"}

type ValidationError struct {
	reason error
}

func (e ValidationError) Error() string {
	return e.reason.Error()
}

func (e ValidationError) Unwrap() error {
	return e.reason
}

func NewValidationError(reason error) error {
	return ValidationError{reason: reason}
}

func IsValidationError(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}

type Validator struct {
	allowedExtensions map[string]struct{}
	allowedList       string
}

func NewValidator(extensions []string) *Validator {
	exts := make(map[string]struct{})
	var list []string
	for _, ext := range extensions {
		ext = strings.TrimSpace(strings.ToLower(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		if _, dup := exts[ext]; !dup {
			list = append(list, ext)
		}
		exts[ext] = struct{}{}
	}
	return &Validator{allowedExtensions: exts, allowedList: strings.Join(list, ", ")}
}

// Files validates an upload request and returns the images to fetch, in
// order. When fileDetails is empty each prescription URL becomes a file
// named after its last path segment. A single bad entry rejects the whole
// request.
func (v *Validator) Files(req models.PrescriptionUploadRequest) ([]models.FileDetail, error) {
	if v == nil {
		return nil, NewValidationError(errors.New("validator not initialised"))
	}
	if len(req.PrescriptionURLs) == 0 {
		return nil, NewValidationError(errNoImages)
	}

	files := append([]models.FileDetail(nil), req.FileDetails...)
	if len(files) == 0 {
		files = make([]models.FileDetail, 0, len(req.PrescriptionURLs))
		for _, raw := range req.PrescriptionURLs {
			files = append(files, models.FileDetail{URL: raw, Name: nameFromURL(raw)})
		}
	}

	for i, f := range files {
		if strings.TrimSpace(f.URL) == "" {
			return nil, NewValidationError(fmt.Errorf("fileDetails[%d]: %w", i, errMissingURL))
		}
		name := f.Name
		if name == "" {
			name = nameFromURL(f.URL)
		}
		if !v.allowed(name) {
			return nil, NewValidationError(fmt.Errorf("%w for %s. Allowed types: %s", errInvalidFileType, name, v.allowedList))
		}
		if f.Name == "" {
			files[i].Name = name
		}
	}

	return files, nil
}

func (v *Validator) allowed(name string) bool {
	_, ok := v.allowedExtensions[strings.ToLower(path.Ext(name))]
	return ok
}

func nameFromURL(raw string) string {
	if u, err := url.Parse(raw); err == nil && u.Path != "" {
		return path.Base(u.Path)
	}
	return path.Base(raw)
}
