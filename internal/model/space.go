package model

import (
    "time"

    "github.com/shopspring/decimal"
)

// SpaceType classifies a parking space.
type SpaceType string

const (
    SpaceResidential SpaceType = "RESIDENTIAL"
    SpaceCommercial  SpaceType = "COMMERCIAL"
    SpaceCovered     SpaceType = "COVERED"
    SpaceUncovered   SpaceType = "UNCOVERED"
    SpaceGarage      SpaceType = "GARAGE"
    SpaceStreet      SpaceType = "STREET"
)

// Valid reports whether t is a known space type.
func (t SpaceType) Valid() bool {
    switch t {
    case SpaceResidential, SpaceCommercial, SpaceCovered, SpaceUncovered, SpaceGarage, SpaceStreet:
        return true
    }
    return false
}

// VehicleType is a kind of vehicle a space accepts.
type VehicleType string

const (
    VehicleCar        VehicleType = "CAR"
    VehicleMotorcycle VehicleType = "MOTORCYCLE"
    VehicleVan        VehicleType = "VAN"
    VehicleTruck      VehicleType = "TRUCK"
    VehicleBicycle    VehicleType = "BICYCLE"
)

func (v VehicleType) Valid() bool {
    switch v {
    case VehicleCar, VehicleMotorcycle, VehicleVan, VehicleTruck, VehicleBicycle:
        return true
    }
    return false
}

// Amenity is an optional feature of a space.
type Amenity string

const (
    AmenityCovered        Amenity = "COVERED"
    AmenitySecurityCamera Amenity = "SECURITY_CAMERA"
    AmenityLighting       Amenity = "LIGHTING"
    AmenityGated          Amenity = "GATED"
    AmenityEVCharging     Amenity = "EV_CHARGING"
    AmenitySecurityGuard  Amenity = "SECURITY_GUARD"
    AmenityWashing        Amenity = "WASHING"
)

func (a Amenity) Valid() bool {
    switch a {
    case AmenityCovered, AmenitySecurityCamera, AmenityLighting, AmenityGated,
        AmenityEVCharging, AmenitySecurityGuard, AmenityWashing:
        return true
    }
    return false
}

// Space is a rentable parking space owned by a host.  Prices are
// fixed-point decimals with two fractional digits in the database;
// PricePerDay is NULL when the host only rents by the hour.
type Space struct {
    ID           uint64              // spaces.id
    OwnerID      uint64              // spaces.owner_id
    Title        string              // spaces.title
    Description  string              // spaces.description
    Address      string              // spaces.address
    Latitude     float64             // spaces.latitude
    Longitude    float64             // spaces.longitude
    PricePerHour decimal.Decimal     // spaces.price_per_hour
    PricePerDay  decimal.NullDecimal // spaces.price_per_day (nullable)
    SpaceType    SpaceType           // spaces.space_type
    VehicleTypes []VehicleType       // spaces.vehicle_types (JSON array)
    Amenities    []Amenity           // spaces.amenities (JSON array)
    Instructions string              // spaces.instructions
    AutoApprove  bool                // spaces.auto_approve
    IsActive     bool                // spaces.is_active
    CreatedAt    time.Time           // spaces.created_at
    UpdatedAt    time.Time           // spaces.updated_at
}

// SpaceStats carries the aggregate columns shown next to a space.
type SpaceStats struct {
    AverageRating decimal.Decimal // AVG of SPACE_REVIEW ratings, one decimal place
    ReviewCount   int             // number of SPACE_REVIEW rows
    BookingCount  int             // bookings of any status
}
