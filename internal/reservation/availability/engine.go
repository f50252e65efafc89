package availability

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/example/ridebook/internal/directory"
	"github.com/example/ridebook/internal/reservation/domain"
)

// ProfilePlaceholder is rendered for display fields of drivers whose linked
// user profile has not been ingested.
const ProfilePlaceholder = "N/A"

// AvailableDriver is the read model returned per free driver.
type AvailableDriver struct {
	DriverID        uuid.UUID     `json:"driverId"`
	FirstName       string        `json:"firstName"`
	LastName        string        `json:"lastName"`
	PictureURL      string        `json:"pictureUrl"`
	ExperienceYears int           `json:"experienceYears"`
	Vehicles        []VehicleView `json:"cars"`
}

// VehicleView projects one owned car with its image gallery.
type VehicleView struct {
	ID                uuid.UUID `json:"id"`
	Brand             string    `json:"carBrand"`
	Model             string    `json:"carModel"`
	PassengerCapacity int       `json:"passengerCapacity"`
	LuggageCapacity   int       `json:"luggageCapacity"`
	PriceCents        int64     `json:"priceCents"`
	ImageURLs         []string  `json:"imageUrls"`
}

// Engine computes which drivers are free for a requested window.
type Engine struct {
	repo domain.Repository
	dir  directory.Directory
}

// New constructs an Engine.
func New(repo domain.Repository, dir directory.Directory) *Engine {
	return &Engine{repo: repo, dir: dir}
}

// AvailableDrivers returns every directory driver without an approved
// reservation conflicting with [windowStart, windowEnd]. Boundaries are
// inclusive: an approved reservation ending exactly at windowStart still marks
// the driver busy. Callers validate windowStart < windowEnd; the engine does
// not reinterpret inverted windows. Absence of data yields empty collections,
// never an error.
func (e *Engine) AvailableDrivers(ctx context.Context, windowStart, windowEnd time.Time) ([]AvailableDriver, error) {
	started := time.Now()

	conflicts, err := e.repo.ListApprovedOverlapping(ctx, windowStart, windowEnd)
	if err != nil {
		queryDuration.WithLabelValues("error").Observe(time.Since(started).Seconds())
		return nil, fmt.Errorf("scan approved reservations: %w", err)
	}
	busy := make(map[uuid.UUID]struct{}, len(conflicts))
	for _, r := range conflicts {
		busy[r.DriverID] = struct{}{}
	}

	drivers, err := e.dir.ListDrivers(ctx)
	if err != nil {
		queryDuration.WithLabelValues("error").Observe(time.Since(started).Seconds())
		return nil, fmt.Errorf("enumerate drivers: %w", err)
	}

	out := make([]AvailableDriver, 0, len(drivers))
	for _, driver := range drivers {
		if _, conflict := busy[driver.ID]; conflict {
			continue
		}
		out = append(out, Project(driver))
	}

	queryDuration.WithLabelValues("ok").Observe(time.Since(started).Seconds())
	busyDrivers.Set(float64(len(busy)))
	return out, nil
}

// Project maps a directory driver onto the availability read model, degrading
// missing profile data to placeholders.
func Project(driver directory.Driver) AvailableDriver {
	out := AvailableDriver{
		DriverID:   driver.ID,
		FirstName:  ProfilePlaceholder,
		LastName:   ProfilePlaceholder,
		PictureURL: ProfilePlaceholder,
		Vehicles:   make([]VehicleView, 0, len(driver.Vehicles)),
	}
	if p := driver.Profile; p != nil {
		out.FirstName = p.FirstName
		out.LastName = p.LastName
		out.PictureURL = p.PictureURL
		out.ExperienceYears = p.ExperienceYears
	}
	for _, v := range driver.Vehicles {
		view := VehicleView{
			ID:                v.ID,
			Brand:             v.Brand,
			Model:             v.Model,
			PassengerCapacity: v.PassengerCapacity,
			LuggageCapacity:   v.LuggageCapacity,
			PriceCents:        v.PriceCents,
			ImageURLs:         v.ImageURLs,
		}
		if view.ImageURLs == nil {
			view.ImageURLs = []string{}
		}
		out.Vehicles = append(out.Vehicles, view)
	}
	return out
}
