package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const dateLayout = "2006-01-02"

// MedicineInput is a line item entered directly by a user. Unlike Medicine,
// every field is required.
type MedicineInput struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	Quantity           int    `json:"quantity"`
	TimeOfIntake       string `json:"timeOfIntake"`
	BeforeOrAfterMeals string `json:"beforeOrAfterMeals"`
}

// MedicalRecordInput is the strict record accepted for manual entry.
type MedicalRecordInput struct {
	SerialNo     int             `json:"serialNo"`
	PatientName  *string         `json:"patientName,omitempty"`
	Age          int             `json:"age"`
	Weight       float64         `json:"weight"`
	Height       float64         `json:"height"`
	Temperature  float64         `json:"temperature"`
	HospitalName string          `json:"hospitalName"`
	DoctorName   string          `json:"doctorName"`
	Date         string          `json:"date"`
	Medicines    []MedicineInput `json:"medicines"`
	ReportImages []string        `json:"reportImages,omitempty"`
}

// Validate returns every violated constraint joined into one error.
func (in MedicalRecordInput) Validate() error {
	var errs []error
	add := func(format string, args ...interface{}) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if in.SerialNo <= 0 {
		add("serialNo must be greater than 0")
	}
	if in.Age < 1 || in.Age > 150 {
		add("age must be between 1 and 150")
	}
	if in.Weight <= 0 || in.Weight > 500 {
		add("weight must be greater than 0 and at most 500")
	}
	if in.Height <= 0 || in.Height > 300 {
		add("height must be greater than 0 and at most 300")
	}
	if in.Temperature < 90 || in.Temperature > 115 {
		add("temperature must be between 90 and 115")
	}
	checkName := func(field, value string) {
		n := utf8.RuneCountInString(strings.TrimSpace(value))
		if n < 2 || n > 200 {
			add("%s must be between 2 and 200 characters", field)
		}
	}
	checkName("hospitalName", in.HospitalName)
	checkName("doctorName", in.DoctorName)
	if _, err := time.Parse(dateLayout, in.Date); err != nil {
		add("date must be in YYYY-MM-DD format")
	}
	if len(in.Medicines) == 0 {
		add("at least one medicine must be provided")
	}
	for i, m := range in.Medicines {
		if strings.TrimSpace(m.Name) == "" {
			add("medicines[%d].name is required", i)
		}
		if m.Quantity <= 0 {
			add("medicines[%d].quantity must be greater than 0", i)
		}
		if strings.TrimSpace(m.TimeOfIntake) == "" {
			add("medicines[%d].timeOfIntake is required", i)
		}
		if strings.TrimSpace(m.BeforeOrAfterMeals) == "" {
			add("medicines[%d].beforeOrAfterMeals is required", i)
		}
	}

	return errors.Join(errs...)
}

// ToPrescription converts a validated input into the stored shape.
func (in MedicalRecordInput) ToPrescription(userID string) Prescription {
	meds := make([]Medicine, len(in.Medicines))
	for i, m := range in.Medicines {
		meds[i] = Medicine{
			ID:                 MedicineID(i + 1),
			Name:               stringPtr(m.Name),
			Quantity:           intPtr(m.Quantity),
			TimeOfIntake:       stringPtr(m.TimeOfIntake),
			BeforeOrAfterMeals: stringPtr(m.BeforeOrAfterMeals),
		}
	}
	images := in.ReportImages
	if images == nil {
		images = []string{}
	}

	return Prescription{
		UserID:       userID,
		SerialNo:     in.SerialNo,
		PatientName:  in.PatientName,
		Age:          intPtr(in.Age),
		Weight:       floatPtr(in.Weight),
		Height:       floatPtr(in.Height),
		Temperature:  floatPtr(in.Temperature),
		HospitalName: stringPtr(strings.TrimSpace(in.HospitalName)),
		DoctorName:   stringPtr(strings.TrimSpace(in.DoctorName)),
		Date:         stringPtr(in.Date),
		Medicines:    meds,
		ReportImages: images,
	}
}

func stringPtr(s string) *string { return &s }

func intPtr(i int) *int { return &i }

func floatPtr(f float64) *float64 { return &f }
