package prescription

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/mediscanner/api/pkg/common/models"
)

func TestBuildSearchFilterEscapesRegex(t *testing.T) {
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	filter := buildSearchFilter(SearchFilter{
		UserID:       "u1",
		DoctorName:   "Dr. (Smith)",
		MedicineName: "amox",
		CreatedFrom:  &from,
	})

	assert.Equal(t, "u1", filter["userId"])
	assert.Equal(t, primitive.Regex{Pattern: `Dr\. \(Smith\)`, Options: "i"}, filter["doctorName"])
	assert.Equal(t, primitive.Regex{Pattern: "amox", Options: "i"}, filter["medicines.name"])
	assert.Equal(t, bson.M{"$gte": from}, filter["createdAt"])
	assert.NotContains(t, filter, "hospitalName")
}

func TestBuildSearchFilterEmpty(t *testing.T) {
	assert.Empty(t, buildSearchFilter(SearchFilter{}))
}

func TestDocumentRoundTripKeepsIdentifier(t *testing.T) {
	oid := primitive.NewObjectID()
	name := "Jane"
	raw, err := bson.Marshal(document{ID: oid, Prescription: models.Prescription{
		ID:          "ignored",
		UserID:      "u1",
		PatientName: &name,
		SerialNo:    2,
	}})
	assert.NoError(t, err)

	var stored bson.M
	assert.NoError(t, bson.Unmarshal(raw, &stored))
	assert.Equal(t, oid, stored["_id"])
	assert.Equal(t, "u1", stored["userId"])
	assert.Nil(t, stored["age"])
	assert.NotContains(t, stored, "ID")

	var doc document
	assert.NoError(t, bson.Unmarshal(raw, &doc))
	rec := doc.toModel()
	assert.Equal(t, oid.Hex(), rec.ID)
	assert.Equal(t, "Jane", *rec.PatientName)
	assert.Equal(t, 2, rec.SerialNo)
	assert.Equal(t, []models.Medicine{}, rec.Medicines)
	assert.Equal(t, []string{}, rec.ReportImages)
}
