package handler

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/parking-rental/internal/config"
	"github.com/iliyamo/parking-rental/internal/model"
	"github.com/iliyamo/parking-rental/internal/repository"
)

var mkt = config.Marketplace{DefaultPageSize: 10, MaxPageSize: 50, SearchRadiusKm: 10, MaxSearchRadiusKm: 50}

func storedSpace(id, owner uint64) repository.SpaceListing {
	return repository.SpaceListing{
		Space: model.Space{
			ID: id, OwnerID: owner, Title: "Garage downtown", Address: "Rua A, 100",
			Latitude: -23.55, Longitude: -46.63,
			PricePerHour: decimal.RequireFromString("5"),
			PricePerDay:  decimal.NewNullDecimal(decimal.RequireFromString("25")),
			SpaceType:    model.SpaceGarage, VehicleTypes: []model.VehicleType{model.VehicleCar},
			AutoApprove: true, IsActive: true, CreatedAt: now, UpdatedAt: now,
		},
		Stats: model.SpaceStats{AverageRating: decimal.RequireFromString("4.5"), ReviewCount: 2, BookingCount: 3},
	}
}

const validSpace = `{"title":"Covered spot","address":"Rua B, 200","latitude":-23.5,"longitude":-46.6,
	"pricePerHour":"7.50","spaceType":"covered","vehicleTypes":["CAR","car","MOTORCYCLE"],"amenities":["LIGHTING"]}`

func TestCreateSpace(t *testing.T) {
	spaces, purger := newFakeSpaces(), &countingPurger{}
	h := NewSpaceHandler(spaces, purger, mkt)

	c, rec := newCtx(http.MethodPost, "/v1/spaces", validSpace, 9)
	require.NoError(t, h.Create(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	var out spaceResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, uint64(9), out.OwnerID)
	assert.Equal(t, "7.50", out.PricePerHour)
	assert.Nil(t, out.PricePerDay)
	assert.Equal(t, model.SpaceCovered, out.SpaceType)
	assert.Equal(t, []model.VehicleType{model.VehicleCar, model.VehicleMotorcycle}, out.VehicleTypes)
	assert.True(t, out.AutoApprove)
	assert.True(t, out.IsActive)
	assert.Equal(t, "0.0", out.AverageRating)
	assert.Equal(t, 1, purger.n)
}

func TestCreateSpaceValidation(t *testing.T) {
	cases := map[string]string{
		"short title":      `{"title":"ab","address":"Rua B, 200","pricePerHour":5,"spaceType":"GARAGE","vehicleTypes":["CAR"]}`,
		"short address":    `{"title":"Garage","address":"Rua","pricePerHour":5,"spaceType":"GARAGE","vehicleTypes":["CAR"]}`,
		"latitude":         `{"title":"Garage","address":"Rua B, 200","latitude":91,"pricePerHour":5,"spaceType":"GARAGE","vehicleTypes":["CAR"]}`,
		"longitude":        `{"title":"Garage","address":"Rua B, 200","longitude":-181,"pricePerHour":5,"spaceType":"GARAGE","vehicleTypes":["CAR"]}`,
		"zero price":       `{"title":"Garage","address":"Rua B, 200","pricePerHour":0,"spaceType":"GARAGE","vehicleTypes":["CAR"]}`,
		"missing price":    `{"title":"Garage","address":"Rua B, 200","spaceType":"GARAGE","vehicleTypes":["CAR"]}`,
		"negative daily":   `{"title":"Garage","address":"Rua B, 200","pricePerHour":5,"pricePerDay":-1,"spaceType":"GARAGE","vehicleTypes":["CAR"]}`,
		"sub-cent price":   `{"title":"Garage","address":"Rua B, 200","pricePerHour":"5.001","spaceType":"GARAGE","vehicleTypes":["CAR"]}`,
		"bad space type":   `{"title":"Garage","address":"Rua B, 200","pricePerHour":5,"spaceType":"ROOF","vehicleTypes":["CAR"]}`,
		"no vehicle types": `{"title":"Garage","address":"Rua B, 200","pricePerHour":5,"spaceType":"GARAGE","vehicleTypes":[]}`,
		"bad vehicle":      `{"title":"Garage","address":"Rua B, 200","pricePerHour":5,"spaceType":"GARAGE","vehicleTypes":["TANK"]}`,
		"bad amenity":      `{"title":"Garage","address":"Rua B, 200","pricePerHour":5,"spaceType":"GARAGE","vehicleTypes":["CAR"],"amenities":["POOL"]}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			spaces := newFakeSpaces()
			h := NewSpaceHandler(spaces, nil, mkt)
			c, rec := newCtx(http.MethodPost, "/v1/spaces", body, 9)
			require.NoError(t, h.Create(c))
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.Empty(t, spaces.listings)
		})
	}
}

func TestUpdateSpaceMergesFields(t *testing.T) {
	spaces := newFakeSpaces(storedSpace(1, 9))
	h := NewSpaceHandler(spaces, nil, mkt)

	c, rec := newCtx(http.MethodPut, "/v1/spaces/1", `{"pricePerHour":6,"pricePerDay":null,"isActive":false}`, 9)
	require.NoError(t, h.Update(withParams(c, "id", "1")))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	got := spaces.listings[1]
	assert.Equal(t, "Garage downtown", got.Title)
	assert.True(t, got.PricePerHour.Equal(decimal.NewFromInt(6)))
	assert.False(t, got.PricePerDay.Valid)
	assert.False(t, got.IsActive)

	var out spaceResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "4.5", out.AverageRating)
}

func TestUpdateSpaceForbiddenAndMissing(t *testing.T) {
	h := NewSpaceHandler(newFakeSpaces(storedSpace(1, 9)), nil, mkt)

	c, rec := newCtx(http.MethodPut, "/v1/spaces/1", `{"title":"Mine now"}`, 5)
	require.NoError(t, h.Update(withParams(c, "id", "1")))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	c, rec = newCtx(http.MethodPut, "/v1/spaces/2", `{"title":"Gone"}`, 9)
	require.NoError(t, h.Update(withParams(c, "id", "2")))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	c, rec = newCtx(http.MethodPut, "/v1/spaces/x", `{}`, 9)
	require.NoError(t, h.Update(withParams(c, "id", "x")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteSpace(t *testing.T) {
	spaces := newFakeSpaces(storedSpace(1, 9), storedSpace(2, 9))
	spaces.hasBook[2] = true
	purger := &countingPurger{}
	h := NewSpaceHandler(spaces, purger, mkt)

	c, rec := newCtx(http.MethodDelete, "/v1/spaces/2", "", 9)
	require.NoError(t, h.Delete(withParams(c, "id", "2")))
	assert.Equal(t, http.StatusConflict, rec.Code)

	c, rec = newCtx(http.MethodDelete, "/v1/spaces/1", "", 5)
	require.NoError(t, h.Delete(withParams(c, "id", "1")))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	c, rec = newCtx(http.MethodDelete, "/v1/spaces/1", "", 9)
	require.NoError(t, h.Delete(withParams(c, "id", "1")))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 1, purger.n)
}

func TestGetSpace(t *testing.T) {
	h := NewSpaceHandler(newFakeSpaces(storedSpace(1, 9)), nil, mkt)

	c, rec := newCtx(http.MethodGet, "/v1/spaces/1", "", 0)
	require.NoError(t, h.Get(withParams(c, "id", "1")))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"pricePerDay":"25.00"`)
	assert.Contains(t, rec.Body.String(), `"reviewCount":2`)

	c, rec = newCtx(http.MethodGet, "/v1/spaces/7", "", 0)
	require.NoError(t, h.Get(withParams(c, "id", "7")))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListSpacesFilters(t *testing.T) {
	spaces := newFakeSpaces(storedSpace(1, 9))
	h := NewSpaceHandler(spaces, nil, mkt)

	c, rec := newCtx(http.MethodGet, "/v1/spaces?ownerId=9&isActive=true&spaceType=garage&vehicleType=car&minPrice=2&maxPrice=10&limit=500", "", 0)
	require.NoError(t, h.List(c))
	require.Equal(t, http.StatusOK, rec.Code)
	f := spaces.lastList
	require.NotNil(t, f.OwnerID)
	assert.Equal(t, uint64(9), *f.OwnerID)
	require.NotNil(t, f.IsActive)
	assert.True(t, *f.IsActive)
	assert.Equal(t, model.SpaceGarage, f.SpaceType)
	assert.Equal(t, model.VehicleCar, f.VehicleType)
	assert.True(t, f.MinPrice.Equal(decimal.NewFromInt(2)))
	assert.Contains(t, rec.Body.String(), `"limit":50`)

	c, rec = newCtx(http.MethodGet, "/v1/spaces?minPrice=abc", "", 0)
	require.NoError(t, h.List(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearchSpaces(t *testing.T) {
	spaces := newFakeSpaces()
	h := NewSpaceHandler(spaces, nil, mkt)

	c, rec := newCtx(http.MethodGet, "/v1/spaces/search?query=garage&type=all&vehicleTypes=car,van&amenities=ev_charging&latitude=-23.5&longitude=-46.6&radius=500&page=2", "", 0)
	require.NoError(t, h.Search(c))
	require.Equal(t, http.StatusOK, rec.Code)
	q := spaces.lastQ
	assert.Equal(t, "garage", q.Text)
	assert.Empty(t, q.SpaceType)
	assert.Equal(t, []model.VehicleType{model.VehicleCar, model.VehicleVan}, q.VehicleTypes)
	assert.Equal(t, []model.Amenity{model.AmenityEVCharging}, q.Amenities)
	require.NotNil(t, q.Near)
	assert.Equal(t, 50.0, q.RadiusKm)
	assert.Equal(t, 2, q.Page.Page)

	c, _ = newCtx(http.MethodGet, "/v1/spaces/search?latitude=1&longitude=2", "", 0)
	require.NoError(t, h.Search(c))
	assert.Equal(t, 10.0, spaces.lastQ.RadiusKm)

	bad := []string{
		"/v1/spaces/search?latitude=10",
		"/v1/spaces/search?latitude=95&longitude=0",
		"/v1/spaces/search?latitude=1&longitude=2&radius=-1",
		"/v1/spaces/search?vehicleTypes=tank",
		"/v1/spaces/search?type=roof",
	}
	for _, target := range bad {
		c, rec := newCtx(http.MethodGet, target, "", 0)
		require.NoError(t, h.Search(c))
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}
