package directory

import (
	"io"

	"github.com/google/uuid"
)

// Server ingests driver profile updates into a MemoryDirectory.
type Server struct {
	dir *MemoryDirectory
}

// NewServer constructs a server.
func NewServer(dir *MemoryDirectory) *Server {
	return &Server{dir: dir}
}

// StreamProfiles consumes profile updates until the client closes the stream.
// Records with an unparseable driver id are skipped.
func (s *Server) StreamProfiles(stream Directory_StreamProfilesServer) error {
	for {
		msg, err := stream.Recv()
		if err == io.EOF {
			return stream.SendAndClose(&Ack{})
		}
		if err != nil {
			return err
		}
		driverID, err := uuid.Parse(msg.DriverId)
		if err != nil {
			continue
		}
		s.dir.UpsertDriver(stream.Context(), toDriver(driverID, msg))
	}
}

func toDriver(driverID uuid.UUID, msg *DriverProfileUpdate) Driver {
	driver := Driver{ID: driverID, Vehicles: make([]Vehicle, 0, len(msg.Vehicles))}
	if msg.FirstName != "" || msg.LastName != "" || msg.PictureUrl != "" {
		driver.Profile = &Profile{
			FirstName:       msg.FirstName,
			LastName:        msg.LastName,
			PictureURL:      msg.PictureUrl,
			ExperienceYears: int(msg.ExperienceYears),
		}
	}
	for _, v := range msg.Vehicles {
		vehicleID, err := uuid.Parse(v.Id)
		if err != nil {
			continue
		}
		driver.Vehicles = append(driver.Vehicles, Vehicle{
			ID:                vehicleID,
			Brand:             v.Brand,
			Model:             v.Model,
			PassengerCapacity: int(v.PassengerCapacity),
			LuggageCapacity:   int(v.LuggageCapacity),
			PriceCents:        v.PriceCents,
			ImageURLs:         append([]string(nil), v.ImageUrls...),
		})
	}
	return driver
}
