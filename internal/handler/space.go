package handler

import (
    "bytes"
    "context"
    "encoding/json"
    "errors"
    "net/http"
    "strconv"
    "strings"

    "github.com/labstack/echo/v4"
    "github.com/shopspring/decimal"

    "github.com/iliyamo/parking-rental/internal/config"
    "github.com/iliyamo/parking-rental/internal/model"
    "github.com/iliyamo/parking-rental/internal/repository"
)

// SpaceStore is implemented by *repository.SpaceRepo.
type SpaceStore interface {
    Create(ctx context.Context, s *model.Space) error
    GetListing(ctx context.Context, id uint64) (repository.SpaceListing, error)
    Update(ctx context.Context, ownerID uint64, s *model.Space) error
    Delete(ctx context.Context, ownerID, id uint64) error
    List(ctx context.Context, f repository.SpaceFilter, p repository.Page) ([]repository.SpaceListing, int, error)
    ListByOwner(ctx context.Context, ownerID uint64, limit int) ([]repository.SpaceListing, error)
    Search(ctx context.Context, q repository.SpaceSearchQuery) ([]repository.SpaceListing, int, error)
}

// CacheInvalidator drops cached public listings after a space changes.
type CacheInvalidator interface {
    Purge(ctx context.Context)
}

// SpaceHandler serves the public catalogue and the host's space management.
type SpaceHandler struct {
    Spaces SpaceStore
    Cache  CacheInvalidator // may be nil
    Paging Paging
    Mkt    config.Marketplace
}

func NewSpaceHandler(spaces SpaceStore, cache CacheInvalidator, mkt config.Marketplace) *SpaceHandler {
    return &SpaceHandler{
        Spaces: spaces,
        Cache:  cache,
        Paging: Paging{Default: mkt.DefaultPageSize, Max: mkt.MaxPageSize},
        Mkt:    mkt,
    }
}

// spaceReq is used for create and update.  On update every absent field
// keeps its stored value; pricePerDay:null clears the daily rate.
type spaceReq struct {
    Title        *string             `json:"title"`
    Description  *string             `json:"description"`
    Address      *string             `json:"address"`
    Latitude     *float64            `json:"latitude"`
    Longitude    *float64            `json:"longitude"`
    PricePerHour *decimal.Decimal    `json:"pricePerHour"`
    PricePerDay  json.RawMessage     `json:"pricePerDay"`
    SpaceType    *model.SpaceType    `json:"spaceType"`
    VehicleTypes []model.VehicleType `json:"vehicleTypes"`
    Amenities    []model.Amenity     `json:"amenities"`
    Instructions *string             `json:"instructions"`
    AutoApprove  *bool               `json:"autoApprove"`
    IsActive     *bool               `json:"isActive"`
}

func (r spaceReq) applyTo(s *model.Space) error {
    if r.Title != nil {
        s.Title = strings.TrimSpace(*r.Title)
    }
    if r.Description != nil {
        s.Description = strings.TrimSpace(*r.Description)
    }
    if r.Address != nil {
        s.Address = strings.TrimSpace(*r.Address)
    }
    if r.Latitude != nil {
        s.Latitude = *r.Latitude
    }
    if r.Longitude != nil {
        s.Longitude = *r.Longitude
    }
    if r.PricePerHour != nil {
        s.PricePerHour = *r.PricePerHour
    }
    if len(r.PricePerDay) > 0 {
        if bytes.Equal(bytes.TrimSpace(r.PricePerDay), []byte("null")) {
            s.PricePerDay = decimal.NullDecimal{}
        } else {
            var d decimal.Decimal
            if err := d.UnmarshalJSON(r.PricePerDay); err != nil {
                return errors.New("pricePerDay must be a number")
            }
            s.PricePerDay = decimal.NewNullDecimal(d)
        }
    }
    if r.SpaceType != nil {
        s.SpaceType = model.SpaceType(strings.ToUpper(string(*r.SpaceType)))
    }
    if r.VehicleTypes != nil {
        s.VehicleTypes = dedupe(r.VehicleTypes)
    }
    if r.Amenities != nil {
        s.Amenities = dedupe(r.Amenities)
    }
    if r.Instructions != nil {
        s.Instructions = strings.TrimSpace(*r.Instructions)
    }
    if r.AutoApprove != nil {
        s.AutoApprove = *r.AutoApprove
    }
    if r.IsActive != nil {
        s.IsActive = *r.IsActive
    }
    return nil
}

func dedupe[T ~string](in []T) []T {
    seen := make(map[T]bool, len(in))
    out := make([]T, 0, len(in))
    for _, v := range in {
        v = T(strings.ToUpper(strings.TrimSpace(string(v))))
        if !seen[v] {
            seen[v] = true
            out = append(out, v)
        }
    }
    return out
}

// validateSpace checks a space as it would be stored.
func validateSpace(s *model.Space) error {
    switch {
    case len([]rune(s.Title)) < 3:
        return errors.New("title must be at least 3 characters")
    case len([]rune(s.Address)) < 5:
        return errors.New("address must be at least 5 characters")
    case s.Latitude < -90 || s.Latitude > 90:
        return errors.New("latitude must be between -90 and 90")
    case s.Longitude < -180 || s.Longitude > 180:
        return errors.New("longitude must be between -180 and 180")
    case !s.PricePerHour.IsPositive():
        return errors.New("pricePerHour must be greater than 0")
    case s.PricePerDay.Valid && !s.PricePerDay.Decimal.IsPositive():
        return errors.New("pricePerDay must be greater than 0")
    case !s.SpaceType.Valid():
        return errors.New("invalid spaceType")
    case len(s.VehicleTypes) == 0:
        return errors.New("select at least one vehicle type")
    }
    for _, v := range s.VehicleTypes {
        if !v.Valid() {
            return errors.New("invalid vehicle type " + string(v))
        }
    }
    for _, a := range s.Amenities {
        if !a.Valid() {
            return errors.New("invalid amenity " + string(a))
        }
    }
    // stored as DECIMAL(10,2)
    if !hasCents(s.PricePerHour) || (s.PricePerDay.Valid && !hasCents(s.PricePerDay.Decimal)) {
        return errors.New("prices take at most two decimal places")
    }
    return nil
}

func hasCents(d decimal.Decimal) bool { return d.Equal(d.Round(2)) }

func (h *SpaceHandler) purge(ctx context.Context) {
    if h.Cache != nil {
        h.Cache.Purge(ctx)
    }
}

// Create adds a space owned by the calling host.
func (h *SpaceHandler) Create(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return unauthorized(c)
    }
    var req spaceReq
    if err := c.Bind(&req); err != nil {
        return badRequest(c, "invalid body")
    }
    s := &model.Space{OwnerID: uid, AutoApprove: true, IsActive: true}
    if err := req.applyTo(s); err != nil {
        return badRequest(c, err.Error())
    }
    if err := validateSpace(s); err != nil {
        return badRequest(c, err.Error())
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
    defer cancel()
    if err := h.Spaces.Create(ctx, s); err != nil {
        return respondError(c, err)
    }
    h.purge(ctx)
    return c.JSON(http.StatusCreated, toSpaceResp(repository.SpaceListing{Space: *s}))
}

// Update changes the fields present in the body of a space the caller owns.
func (h *SpaceHandler) Update(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return unauthorized(c)
    }
    id, err := parseIDParam(c, "id")
    if err != nil {
        return badRequest(c, err.Error())
    }
    var req spaceReq
    if err := c.Bind(&req); err != nil {
        return badRequest(c, "invalid body")
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
    defer cancel()
    current, err := h.Spaces.GetListing(ctx, id)
    if err != nil {
        return respondError(c, err)
    }
    if current.OwnerID != uid {
        return respondError(c, repository.ErrForbidden)
    }
    s := current.Space
    if err := req.applyTo(&s); err != nil {
        return badRequest(c, err.Error())
    }
    if err := validateSpace(&s); err != nil {
        return badRequest(c, err.Error())
    }
    if err := h.Spaces.Update(ctx, uid, &s); err != nil {
        return respondError(c, err)
    }
    h.purge(ctx)
    return c.JSON(http.StatusOK, toSpaceResp(repository.SpaceListing{Space: s, Stats: current.Stats}))
}

// Delete removes a space that was never booked.
func (h *SpaceHandler) Delete(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return unauthorized(c)
    }
    id, err := parseIDParam(c, "id")
    if err != nil {
        return badRequest(c, err.Error())
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
    defer cancel()
    if err := h.Spaces.Delete(ctx, uid, id); err != nil {
        if errors.Is(err, repository.ErrConflict) {
            return c.JSON(http.StatusConflict, echo.Map{"error": "space has bookings; deactivate it instead"})
        }
        return respondError(c, err)
    }
    h.purge(ctx)
    return c.NoContent(http.StatusNoContent)
}

// Mine lists every space of the calling host, inactive ones included.
func (h *SpaceHandler) Mine(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return unauthorized(c)
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
    defer cancel()
    spaces, err := h.Spaces.ListByOwner(ctx, uid, 0)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"items": toSpaceList(spaces)})
}

// Get returns one space with its rating and counters.
func (h *SpaceHandler) Get(c echo.Context) error {
    id, err := parseIDParam(c, "id")
    if err != nil {
        return badRequest(c, err.Error())
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
    defer cancel()
    l, err := h.Spaces.GetListing(ctx, id)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, toSpaceResp(l))
}

// List pages through spaces filtered by ownerId, isActive, spaceType,
// vehicleType, minPrice and maxPrice.
func (h *SpaceHandler) List(c echo.Context) error {
    var f repository.SpaceFilter
    if v := c.QueryParam("ownerId"); v != "" {
        id, err := strconv.ParseUint(v, 10, 64)
        if err != nil {
            return badRequest(c, "invalid ownerId")
        }
        f.OwnerID = &id
    }
    if v := c.QueryParam("isActive"); v != "" {
        b, err := strconv.ParseBool(v)
        if err != nil {
            return badRequest(c, "invalid isActive")
        }
        f.IsActive = &b
    }
    if v := c.QueryParam("spaceType"); v != "" {
        f.SpaceType = model.SpaceType(strings.ToUpper(v))
        if !f.SpaceType.Valid() {
            return badRequest(c, "invalid spaceType")
        }
    }
    if v := c.QueryParam("vehicleType"); v != "" {
        f.VehicleType = model.VehicleType(strings.ToUpper(v))
        if !f.VehicleType.Valid() {
            return badRequest(c, "invalid vehicleType")
        }
    }
    var err error
    if f.MinPrice, err = parseDecimal(c.QueryParam("minPrice")); err != nil {
        return badRequest(c, "invalid minPrice")
    }
    if f.MaxPrice, err = parseDecimal(c.QueryParam("maxPrice")); err != nil {
        return badRequest(c, "invalid maxPrice")
    }

    page := h.Paging.from(c)
    ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
    defer cancel()
    spaces, total, err := h.Spaces.List(ctx, f, page)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"items": toSpaceList(spaces), "pagination": pagination(page, total)})
}

func splitCSV(s string) []string {
    var out []string
    for _, p := range strings.Split(s, ",") {
        if p = strings.TrimSpace(p); p != "" {
            out = append(out, strings.ToUpper(p))
        }
    }
    return out
}

// Search finds active spaces by text, type, vehicle types, amenities, price
// and, when latitude and longitude are given, distance.
func (h *SpaceHandler) Search(c echo.Context) error {
    q := repository.SpaceSearchQuery{Text: strings.TrimSpace(c.QueryParam("query"))}
    if v := c.QueryParam("type"); v != "" && !strings.EqualFold(v, "all") {
        q.SpaceType = model.SpaceType(strings.ToUpper(v))
        if !q.SpaceType.Valid() {
            return badRequest(c, "invalid type")
        }
    }
    for _, v := range splitCSV(c.QueryParam("vehicleTypes")) {
        vt := model.VehicleType(v)
        if !vt.Valid() {
            return badRequest(c, "invalid vehicle type "+v)
        }
        q.VehicleTypes = append(q.VehicleTypes, vt)
    }
    for _, v := range splitCSV(c.QueryParam("amenities")) {
        a := model.Amenity(v)
        if !a.Valid() {
            return badRequest(c, "invalid amenity "+v)
        }
        q.Amenities = append(q.Amenities, a)
    }
    var err error
    if q.MinPrice, err = parseDecimal(c.QueryParam("minPrice")); err != nil {
        return badRequest(c, "invalid minPrice")
    }
    if q.MaxPrice, err = parseDecimal(c.QueryParam("maxPrice")); err != nil {
        return badRequest(c, "invalid maxPrice")
    }

    latS, lngS := c.QueryParam("latitude"), c.QueryParam("longitude")
    if latS != "" || lngS != "" {
        lat, errLat := strconv.ParseFloat(latS, 64)
        lng, errLng := strconv.ParseFloat(lngS, 64)
        if errLat != nil || errLng != nil || lat < -90 || lat > 90 || lng < -180 || lng > 180 {
            return badRequest(c, "latitude and longitude must be given together and be valid coordinates")
        }
        q.Near = &repository.GeoPoint{Lat: lat, Lng: lng}
        q.RadiusKm = h.Mkt.SearchRadiusKm
        if v := c.QueryParam("radius"); v != "" {
            r, err := strconv.ParseFloat(v, 64)
            if err != nil || r <= 0 {
                return badRequest(c, "invalid radius")
            }
            q.RadiusKm = r
        }
        if q.RadiusKm < 0.1 {
            q.RadiusKm = 0.1
        }
        if q.RadiusKm > h.Mkt.MaxSearchRadiusKm {
            q.RadiusKm = h.Mkt.MaxSearchRadiusKm
        }
    }

    q.Page = h.Paging.from(c)
    ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
    defer cancel()
    spaces, total, err := h.Spaces.Search(ctx, q)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"items": toSpaceList(spaces), "pagination": pagination(q.Page, total)})
}
