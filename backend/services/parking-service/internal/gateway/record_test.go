package gateway

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestRecordAccessors(t *testing.T) {
	id := uuid.New()
	started := time.Date(2026, 5, 4, 10, 0, 0, 0, time.FixedZone("CEST", 2*3600))

	rec := Record{
		"id":         [16]byte(id),
		"name":       []byte("Stureplan"),
		"duration":   int32(90),
		"cost":       "983",
		"latitude":   59.33,
		"anonymous":  true,
		"started_at": started,
		"ended_at":   "2026-05-04T08:30:00Z",
		"closed_at":  nil,
	}

	assert.Equal(t, id.String(), rec.String("id"))
	assert.Equal(t, "Stureplan", rec.String("name"))
	assert.Equal(t, "", rec.String("missing"))
	assert.Equal(t, int64(90), rec.Int64("duration"))
	assert.Equal(t, int64(983), rec.Int64("cost"))
	assert.Equal(t, 59.33, rec.Float64("latitude"))
	assert.True(t, rec.Bool("anonymous"))
	assert.Equal(t, time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC), rec.Time("started_at"))
	assert.Equal(t, time.Date(2026, 5, 4, 8, 30, 0, 0, time.UTC), rec.Time("ended_at"))
	assert.Nil(t, rec.TimePtr("closed_at"))
	assert.True(t, rec.Time("closed_at").IsZero())
}

func TestRecordCloneIsIndependent(t *testing.T) {
	rec := Record{"name": "A"}
	clone := rec.Clone()
	clone["name"] = "B"

	assert.Equal(t, "A", rec.String("name"))
	assert.Nil(t, Record(nil).Clone())
}

func TestSchemaRejectsUnknownNames(t *testing.T) {
	schema := DefaultSchema()

	_, err := schema.Table("parkeringar")
	assert.Error(t, err)

	zones, err := schema.Table(TableZones)
	assert.NoError(t, err)
	assert.Error(t, zones.checkRecord(Record{"price": 1}))
	assert.Error(t, zones.checkQuery(Query{Order: []Order{Desc("price")}}))
	assert.Error(t, zones.checkQuery(Query{Limit: -1}))
	assert.NoError(t, zones.checkQuery(Query{Filters: []Filter{Eq("city", "Stockholm")}, Order: []Order{Asc("name")}}))
}
