package extraction

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/mediscanner/api/pkg/common/models"
)

var (
	ErrEmptyOutput = errors.New("model returned no text")
	ErrNotAnObject = errors.New("model output is not a JSON object")
)

// Normalize maps raw model output to a prescription record. It never
// fails: unparsable output yields the empty record for filename.
func Normalize(raw, filename string) models.Prescription {
	rec, err := Parse(raw, filename)
	if err != nil {
		return models.EmptyPrescription(filename)
	}
	return rec
}

// Parse is Normalize with the failure reason exposed.
func Parse(raw, filename string) (models.Prescription, error) {
	text := StripFences(raw)
	if text == "" {
		return models.Prescription{}, ErrEmptyOutput
	}

	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()

	var payload interface{}
	if err := dec.Decode(&payload); err != nil {
		return models.Prescription{}, fmt.Errorf("decode model output: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return models.Prescription{}, errors.New("decode model output: trailing data after JSON object")
	}

	fields, ok := payload.(map[string]interface{})
	if !ok {
		return models.Prescription{}, ErrNotAnObject
	}

	f := fieldReader{fields: fields}
	rec := models.Prescription{
		PatientName:  f.str("patientName"),
		Age:          f.integer("age"),
		Weight:       f.number("weight"),
		Height:       f.number("height"),
		Temperature:  f.number("temperature"),
		HospitalName: f.str("hospitalName"),
		DoctorName:   f.str("doctorName"),
		Date:         f.str("date"),
		Medicines:    []models.Medicine{},
		ReportImages: []string{filename},
	}

	rawMedicines, present := fields["medicines"]
	switch list := rawMedicines.(type) {
	case []interface{}:
		for i, item := range list {
			entry, ok := item.(map[string]interface{})
			if !ok {
				return models.Prescription{}, fmt.Errorf("medicines[%d] is not an object", i)
			}
			m := fieldReader{fields: entry, prefix: fmt.Sprintf("medicines[%d].", i)}
			med := models.Medicine{
				ID:                 models.MedicineID(i + 1),
				Name:               m.str("name"),
				Quantity:           m.integer("quantity"),
				TimeOfIntake:       m.str("timeOfIntake"),
				BeforeOrAfterMeals: m.str("beforeOrAfterMeals"),
			}
			if med.Quantity != nil && *med.Quantity < 0 && m.err == nil {
				m.err = fmt.Errorf("%squantity must not be negative", m.prefix)
			}
			if m.err != nil {
				return models.Prescription{}, m.err
			}
			rec.Medicines = append(rec.Medicines, med)
		}
	default:
		if present {
			return models.Prescription{}, errors.New("medicines is not a list")
		}
	}

	if f.err != nil {
		return models.Prescription{}, f.err
	}
	return rec, nil
}

// fieldReader converts loosely typed JSON values, keeping the first error.
// Numeric strings are accepted for numbers; integers must be integral.
type fieldReader struct {
	fields map[string]interface{}
	prefix string
	err    error
}

func (r *fieldReader) fail(key, format string, args ...interface{}) {
	if r.err == nil {
		r.err = fmt.Errorf("%s%s: %s", r.prefix, key, fmt.Sprintf(format, args...))
	}
}

func (r *fieldReader) str(key string) *string {
	switch v := r.fields[key].(type) {
	case nil:
		return nil
	case string:
		return &v
	default:
		r.fail(key, "expected string, got %T", v)
		return nil
	}
}

func (r *fieldReader) number(key string) *float64 {
	var text string
	switch v := r.fields[key].(type) {
	case nil:
		return nil
	case json.Number:
		text = v.String()
	case string:
		text = strings.TrimSpace(v)
	default:
		r.fail(key, "expected number, got %T", v)
		return nil
	}

	f, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		r.fail(key, "invalid number %q", text)
		return nil
	}
	return &f
}

func (r *fieldReader) integer(key string) *int {
	f := r.number(key)
	if f == nil {
		return nil
	}
	if *f != math.Trunc(*f) || math.Abs(*f) > math.MaxInt32 {
		r.fail(key, "expected integer, got %v", *f)
		return nil
	}
	n := int(*f)
	return &n
}
