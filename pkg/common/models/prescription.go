package models

import (
	"fmt"
	"time"
)

// Medicine is one prescribed line item. Every field except ID may be nil
// when the source could not be read.
type Medicine struct {
	ID                 string  `json:"id" bson:"id"`
	Name               *string `json:"name" bson:"name"`
	Quantity           *int    `json:"quantity" bson:"quantity"`
	TimeOfIntake       *string `json:"timeOfIntake" bson:"timeOfIntake"`
	BeforeOrAfterMeals *string `json:"beforeOrAfterMeals" bson:"beforeOrAfterMeals"`
}

// MedicineID returns the ordinal identifier for the 1-based position n.
func MedicineID(n int) string {
	return fmt.Sprintf("med_%d", n)
}

// Prescription is the stored shape of one prescription image.
//
// Numeric vitals are unbounded here; bounds are enforced only on
// MedicalRecordInput.
type Prescription struct {
	ID           string     `json:"_id,omitempty" bson:"-"`
	UserID       string     `json:"userId,omitempty" bson:"userId,omitempty"`
	SerialNo     int        `json:"serialNo" bson:"serialNo"`
	PatientName  *string    `json:"patientName" bson:"patientName"`
	Age          *int       `json:"age" bson:"age"`
	Weight       *float64   `json:"weight" bson:"weight"`
	Height       *float64   `json:"height" bson:"height"`
	Temperature  *float64   `json:"temperature" bson:"temperature"`
	HospitalName *string    `json:"hospitalName" bson:"hospitalName"`
	DoctorName   *string    `json:"doctorName" bson:"doctorName"`
	Date         *string    `json:"date" bson:"date"`
	Medicines    []Medicine `json:"medicines" bson:"medicines"`
	ReportImages []string   `json:"reportImages" bson:"reportImages"`

	ImageURL         string `json:"imageUrl,omitempty" bson:"imageUrl,omitempty"`
	ImageFileID      string `json:"imageFileId,omitempty" bson:"imageFileId,omitempty"`
	OriginalFilename string `json:"originalFilename,omitempty" bson:"originalFilename,omitempty"`

	CreatedAt *time.Time `json:"createdAt,omitempty" bson:"createdAt,omitempty"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty" bson:"updatedAt,omitempty"`
}

// EmptyPrescription is the record produced when nothing could be extracted
// from filename. It is a valid record, not an error.
func EmptyPrescription(filename string) Prescription {
	return Prescription{
		Medicines:    []Medicine{},
		ReportImages: []string{filename},
	}
}

// IsEmpty reports whether no domain field was extracted.
func (p Prescription) IsEmpty() bool {
	return p.PatientName == nil &&
		p.Age == nil &&
		p.Weight == nil &&
		p.Height == nil &&
		p.Temperature == nil &&
		p.HospitalName == nil &&
		p.DoctorName == nil &&
		p.Date == nil &&
		len(p.Medicines) == 0
}

// AttachProvenance links the record to the uploaded image it came from.
func (p *Prescription) AttachProvenance(src FileDetail) {
	p.ImageURL = src.URL
	p.ImageFileID = src.FileID
	p.OriginalFilename = src.Name
}

// PrescriptionPatch carries the fields a client may change after upload.
// Nil fields are left untouched.
type PrescriptionPatch struct {
	PatientName  *string     `json:"patientName"`
	Age          *int        `json:"age"`
	Weight       *float64    `json:"weight"`
	Height       *float64    `json:"height"`
	Temperature  *float64    `json:"temperature"`
	HospitalName *string     `json:"hospitalName"`
	DoctorName   *string     `json:"doctorName"`
	Date         *string     `json:"date"`
	Medicines    *[]Medicine `json:"medicines"`
}

// Fields returns the set fields keyed by their stored names.
func (p PrescriptionPatch) Fields() map[string]interface{} {
	out := make(map[string]interface{})
	if p.PatientName != nil {
		out["patientName"] = *p.PatientName
	}
	if p.Age != nil {
		out["age"] = *p.Age
	}
	if p.Weight != nil {
		out["weight"] = *p.Weight
	}
	if p.Height != nil {
		out["height"] = *p.Height
	}
	if p.Temperature != nil {
		out["temperature"] = *p.Temperature
	}
	if p.HospitalName != nil {
		out["hospitalName"] = *p.HospitalName
	}
	if p.DoctorName != nil {
		out["doctorName"] = *p.DoctorName
	}
	if p.Date != nil {
		out["date"] = *p.Date
	}
	if p.Medicines != nil {
		meds := make([]Medicine, len(*p.Medicines))
		for i, m := range *p.Medicines {
			m.ID = MedicineID(i + 1)
			meds[i] = m
		}
		out["medicines"] = meds
	}
	return out
}

// FileDetail describes one uploaded image in external storage.
type FileDetail struct {
	URL    string `json:"url"`
	FileID string `json:"fileId"`
	Name   string `json:"name"`
}

type PrescriptionUploadRequest struct {
	PrescriptionURLs []string     `json:"prescriptionUrls"`
	FileDetails      []FileDetail `json:"fileDetails"`
}

type PrescriptionResponse struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Count   int            `json:"count"`
	Data    []Prescription `json:"data"`
}
