package directory

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// ErrDriverUnknown indicates a point lookup for a driver the directory has
// never seen.
var ErrDriverUnknown = errors.New("driver not known to directory")

// Profile carries the display fields linked to a driver's user account.
type Profile struct {
	FirstName       string
	LastName        string
	PictureURL      string
	ExperienceYears int
}

// Vehicle describes one car owned by a driver.
type Vehicle struct {
	ID                uuid.UUID
	Brand             string
	Model             string
	PassengerCapacity int
	LuggageCapacity   int
	PriceCents        int64
	ImageURLs         []string
}

// Driver is the directory's read model. Profile is nil when the linked user
// record has not been ingested; callers degrade to placeholders rather than
// failing.
type Driver struct {
	ID       uuid.UUID
	Profile  *Profile
	Vehicles []Vehicle
}

// Directory is the read-only collaborator the reservation core consults for
// driver enumeration and display data.
type Directory interface {
	ListDrivers(ctx context.Context) ([]Driver, error)
	GetDriver(ctx context.Context, id uuid.UUID) (Driver, error)
}

// MemoryDirectory stores the latest ingested snapshot per driver.
type MemoryDirectory struct {
	mu      sync.RWMutex
	drivers map[uuid.UUID]Driver
}

// NewMemoryDirectory constructs an empty directory.
func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{drivers: make(map[uuid.UUID]Driver)}
}

// UpsertDriver replaces the stored snapshot for the driver.
func (d *MemoryDirectory) UpsertDriver(_ context.Context, driver Driver) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if driver.Vehicles == nil {
		driver.Vehicles = []Vehicle{}
	}
	d.drivers[driver.ID] = driver
}

// ListDrivers returns every known driver. Enumeration order is unspecified.
func (d *MemoryDirectory) ListDrivers(_ context.Context) ([]Driver, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Driver, 0, len(d.drivers))
	for _, driver := range d.drivers {
		out = append(out, driver)
	}
	return out, nil
}

// GetDriver returns a single driver snapshot.
func (d *MemoryDirectory) GetDriver(_ context.Context, id uuid.UUID) (Driver, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	driver, ok := d.drivers[id]
	if !ok {
		return Driver{}, ErrDriverUnknown
	}
	return driver, nil
}
