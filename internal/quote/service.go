package quote

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/example/ridebook/internal/directory"
)

// Service estimates reservation prices from the driver's vehicle rates.
type Service struct {
	dir directory.Directory
}

// New creates a quote service.
func New(dir directory.Directory) *Service {
	return &Service{dir: dir}
}

// Quote is the estimate returned for one driver and window.
type Quote struct {
	DriverID   uuid.UUID `json:"driverId"`
	Hours      int64     `json:"hours"`
	RateCents  int64     `json:"rateCents"`
	PriceCents int64     `json:"priceCents"`
}

// EstimatePrice multiplies the driver's cheapest hourly vehicle rate by the
// window duration rounded up to whole hours. A driver without priced vehicles
// quotes zero rather than erroring.
func (s *Service) EstimatePrice(ctx context.Context, driverID uuid.UUID, start, end time.Time) (Quote, error) {
	driver, err := s.dir.GetDriver(ctx, driverID)
	if err != nil {
		return Quote{}, err
	}

	var rate int64
	for _, v := range driver.Vehicles {
		if v.PriceCents <= 0 {
			continue
		}
		if rate == 0 || v.PriceCents < rate {
			rate = v.PriceCents
		}
	}

	hours := int64(math.Ceil(end.Sub(start).Hours()))
	if hours < 1 {
		hours = 1
	}

	return Quote{
		DriverID:   driverID,
		Hours:      hours,
		RateCents:  rate,
		PriceCents: rate * hours,
	}, nil
}
