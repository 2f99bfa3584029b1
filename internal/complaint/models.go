package complaint

import (
	"strconv"
	"time"

	"github.com/TobiSchelling/NoiseStory/internal/phase"
)

// Source column names as published by the 311 dataset.
const (
	ColCreatedDate     = "created_date"
	ColComplaintType   = "complaint_type"
	ColDescriptor      = "descriptor"
	ColIncidentAddress = "incident_address"
	ColBorough         = "borough"
	ColLatitude        = "latitude"
	ColLongitude       = "longitude"
	ColStatus          = "status"
)

// Columns is the default $select list, in CSV order.
var Columns = []string{
	ColCreatedDate, ColComplaintType, ColDescriptor, ColIncidentAddress,
	ColBorough, ColLatitude, ColLongitude, ColStatus,
}

// Borough labels. Unknown covers null and unrecognised input.
const (
	Manhattan    = "Manhattan"
	Brooklyn     = "Brooklyn"
	Queens       = "Queens"
	Bronx        = "Bronx"
	StatenIsland = "Staten Island"
	Unknown      = "Unknown"
)

// Boroughs lists the five boroughs in report order.
var Boroughs = []string{Manhattan, Brooklyn, Queens, Bronx, StatenIsland}

// OtherCategory replaces a null complaint type.
const OtherCategory = "Other"

// TimestampLayout is the layout the dataset uses for created_date.
const TimestampLayout = "2006-01-02T15:04:05.000"

// RawRecord is one CSV row as received. Empty strings are nulls.
type RawRecord struct {
	CreatedDate     string
	ComplaintType   string
	Descriptor      string
	IncidentAddress string
	Borough         string
	Latitude        string
	Longitude       string
	Status          string
}

// Complaint is a cleaned, validated incident.
type Complaint struct {
	CreatedAt time.Time
	Date      time.Time
	Year      int
	Month     time.Month
	Day       int
	Hour      int
	Weekday   string
	IsWeekend bool

	Borough   string
	Category  string
	Latitude  float64
	Longitude float64

	Descriptor string
	Address    string
	Status     string

	Phase phase.Phase
}

// MonthKey returns the YYYY-MM bucket of the complaint.
func (c Complaint) MonthKey() string {
	return c.CreatedAt.Format("2006-01")
}

// DateKey returns the YYYY-MM-DD bucket of the complaint.
func (c Complaint) DateKey() string {
	return c.CreatedAt.Format("2006-01-02")
}

// Raw converts a complaint back into the wire form. Cleaning the result
// yields the same complaint, minus its phase.
func (c Complaint) Raw() RawRecord {
	return RawRecord{
		CreatedDate:     c.CreatedAt.Format(TimestampLayout),
		ComplaintType:   c.Category,
		Descriptor:      c.Descriptor,
		IncidentAddress: c.Address,
		Borough:         c.Borough,
		Latitude:        strconv.FormatFloat(c.Latitude, 'f', -1, 64),
		Longitude:       strconv.FormatFloat(c.Longitude, 'f', -1, 64),
		Status:          c.Status,
	}
}

// BoundingBox is the open latitude/longitude rectangle a record must lie in.
type BoundingBox struct {
	MinLat float64 `yaml:"min_lat"`
	MaxLat float64 `yaml:"max_lat"`
	MinLon float64 `yaml:"min_lon"`
	MaxLon float64 `yaml:"max_lon"`
}

// NYCBox covers the five boroughs.
var NYCBox = BoundingBox{MinLat: 40.4, MaxLat: 40.92, MinLon: -74.26, MaxLon: -73.7}

// Contains reports whether the point lies strictly inside the box.
// NaN coordinates are never contained.
func (b BoundingBox) Contains(lat, lon float64) bool {
	return lat > b.MinLat && lat < b.MaxLat && lon > b.MinLon && lon < b.MaxLon
}
