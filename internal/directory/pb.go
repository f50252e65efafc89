package directory

import "google.golang.org/grpc"

// VehicleUpdate mirrors Vehicle on the wire.
type VehicleUpdate struct {
	Id                string
	Brand             string
	Model             string
	PassengerCapacity int32
	LuggageCapacity   int32
	PriceCents        int64
	ImageUrls         []string
}

// DriverProfileUpdate is one streamed directory record.
type DriverProfileUpdate struct {
	DriverId        string
	FirstName       string
	LastName        string
	PictureUrl      string
	ExperienceYears int32
	Vehicles        []VehicleUpdate
	Ts              int64
}

// Ack is returned when the stream closes.
type Ack struct{}

// DirectoryServer defines the gRPC contract.
type DirectoryServer interface {
	StreamProfiles(Directory_StreamProfilesServer) error
}

// RegisterDirectoryServer registers the service implementation.
func RegisterDirectoryServer(s *grpc.Server, srv DirectoryServer) {
	s.RegisterService(&grpc.ServiceDesc{
		ServiceName: "directory.Directory",
		HandlerType: (*DirectoryServer)(nil),
		Streams: []grpc.StreamDesc{{
			StreamName:    "StreamProfiles",
			Handler:       _Directory_StreamProfiles_Handler,
			ServerStreams: true,
			ClientStreams: true,
		}},
	}, srv)
}

// Directory_StreamProfilesServer defines the bidi stream interface.
type Directory_StreamProfilesServer interface {
	grpc.ServerStream
	SendAndClose(*Ack) error
	Recv() (*DriverProfileUpdate, error)
}

func _Directory_StreamProfiles_Handler(srv interface{}, stream grpc.ServerStream) error {
	return srv.(DirectoryServer).StreamProfiles(&directoryStreamServer{ServerStream: stream})
}

type directoryStreamServer struct {
	grpc.ServerStream
}

func (s *directoryStreamServer) SendAndClose(*Ack) error { return nil }

func (s *directoryStreamServer) Recv() (*DriverProfileUpdate, error) {
	msg := new(DriverProfileUpdate)
	if err := s.ServerStream.RecvMsg(msg); err != nil {
		return nil, err
	}
	return msg, nil
}
