package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/videofx/internal/api/models"
	"github.com/smazurov/videofx/internal/frame"
	"github.com/smazurov/videofx/internal/graph"
	"github.com/smazurov/videofx/internal/media"
)

// DeviceIDInput selects a device by its stable identifier.
type DeviceIDInput struct {
	DeviceID string `path:"device_id" example:"usb-0000:00:14.0-1" doc:"Stable device identifier"`
}

// PreviewInput toggles frame delivery.
type PreviewInput struct {
	Body struct {
		Active bool `json:"active" example:"false" doc:"Whether frames should flow"`
	}
}

// FormatInput applies a capture format.
type FormatInput struct {
	Body models.Format
}

// GeometryInput moves or resizes the preview window.
type GeometryInput struct {
	Body models.Geometry
}

func (s *Server) registerCaptureRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-state",
		Method:      http.MethodGet,
		Path:        "/api/capture",
		Summary:     "Capture State",
		Description: "Current capture graph state, bound device, active format and stages",
		Tags:        []string{"capture"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.StateResponse, error) {
		return s.stateResponse(), nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "list-devices",
		Method:      http.MethodGet,
		Path:        "/api/devices",
		Summary:     "List Devices",
		Description: "Capture devices in enumeration order",
		Tags:        []string{"devices"},
		Security:    withAuth(),
		Errors:      []int{401, 500},
	}, func(_ context.Context, _ *struct{}) (*models.DevicesResponse, error) {
		devs, err := s.options.Devices.Devices()
		if err != nil {
			return nil, huma.Error500InternalServerError("Failed to enumerate devices", err)
		}
		snap := s.options.Capture.Snapshot()

		data := models.DeviceData{Devices: make([]models.DeviceInfo, 0, len(devs)), Count: len(devs)}
		for _, d := range devs {
			data.Devices = append(data.Devices, models.DeviceInfo{
				ID:       d.ID,
				Name:     d.Name,
				Path:     d.Path,
				Selected: snap.Bound && snap.Device.ID == d.ID,
			})
		}
		return &models.DevicesResponse{Body: data}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "select-device",
		Method:      http.MethodPost,
		Path:        "/api/devices/{device_id}/select",
		Summary:     "Select Device",
		Description: "Bind the capture graph to a device, negotiate its format and start the preview",
		Tags:        []string{"devices"},
		Security:    withAuth(),
		Errors:      []int{401, 404, 503},
	}, func(_ context.Context, input *DeviceIDInput) (*models.StateResponse, error) {
		dev, err := s.findDevice(input.DeviceID)
		if err != nil {
			return nil, err
		}
		if err := s.options.Capture.SelectDevice(dev); err != nil {
			return nil, captureError(err)
		}
		return s.stateResponse(), nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "reset-device",
		Method:      http.MethodPost,
		Path:        "/api/capture/reset",
		Summary:     "Reset Device",
		Description: "Release the capture graph and unbind the device",
		Tags:        []string{"capture"},
		Security:    withAuth(),
		Errors:      []int{401, 500},
	}, func(_ context.Context, _ *struct{}) (*models.StateResponse, error) {
		if err := s.options.Capture.ResetDevice(); err != nil {
			return nil, captureError(err)
		}
		return s.stateResponse(), nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "set-preview",
		Method:      http.MethodPut,
		Path:        "/api/capture/preview",
		Summary:     "Pause or Resume",
		Description: "Stop or resume frame delivery without rebuilding the graph",
		Tags:        []string{"capture"},
		Security:    withAuth(),
		Errors:      []int{401, 409, 500},
	}, func(_ context.Context, input *PreviewInput) (*models.StateResponse, error) {
		if err := s.options.Capture.SetPreviewActive(input.Body.Active); err != nil {
			return nil, captureError(err)
		}
		return s.stateResponse(), nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "list-formats",
		Method:      http.MethodGet,
		Path:        "/api/capture/formats",
		Summary:     "List Formats",
		Description: "Formats the bound source can produce",
		Tags:        []string{"capture"},
		Security:    withAuth(),
		Errors:      []int{401, 409, 500},
	}, func(_ context.Context, _ *struct{}) (*models.FormatsResponse, error) {
		caps, err := s.options.Capture.Capabilities()
		if err != nil {
			return nil, captureError(err)
		}
		data := models.FormatsData{Formats: make([]models.Format, 0, len(caps))}
		for _, f := range caps {
			data.Formats = append(data.Formats, models.FormatFrom(f))
		}
		if current := s.options.Capture.Snapshot().Format; !current.IsZero() {
			cf := models.FormatFrom(current)
			data.Current = &cf
		}
		return &models.FormatsResponse{Body: data}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "apply-format",
		Method:      http.MethodPut,
		Path:        "/api/capture/format",
		Summary:     "Apply Format",
		Description: "Switch the source to one of its listed formats; the device stays bound",
		Tags:        []string{"capture"},
		Security:    withAuth(),
		Errors:      []int{401, 409, 422, 500},
	}, func(_ context.Context, input *FormatInput) (*models.StateResponse, error) {
		if err := s.options.Capture.ApplyFormat(input.Body.Frame()); err != nil {
			return nil, captureError(err)
		}
		return s.stateResponse(), nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "set-geometry",
		Method:      http.MethodPut,
		Path:        "/api/capture/geometry",
		Summary:     "Resize Preview",
		Description: "Move or resize the preview window; kept for future graphs",
		Tags:        []string{"capture"},
		Security:    withAuth(),
		Errors:      []int{401, 500},
	}, func(_ context.Context, input *GeometryInput) (*models.StateResponse, error) {
		g := input.Body
		if err := s.options.Capture.Resize(frame.Geometry{X: g.X, Y: g.Y, Width: g.Width, Height: g.Height}); err != nil {
			return nil, captureError(err)
		}
		return s.stateResponse(), nil
	})
}

func (s *Server) findDevice(id string) (media.Device, error) {
	devs, err := s.options.Devices.Devices()
	if err != nil {
		return media.Device{}, huma.Error500InternalServerError("Failed to enumerate devices", err)
	}
	for _, d := range devs {
		if d.ID == id {
			return d, nil
		}
	}
	return media.Device{}, huma.Error404NotFound("Device not found: " + id)
}

func (s *Server) stateResponse() *models.StateResponse {
	snap := s.options.Capture.Snapshot()

	data := models.StateData{
		State:   string(snap.State),
		BuildID: snap.BuildID,
		Stages:  snap.Stages,
		Geometry: models.Geometry{
			X: snap.Geometry.X, Y: snap.Geometry.Y,
			Width: snap.Geometry.Width, Height: snap.Geometry.Height,
		},
	}
	if snap.Bound {
		id := snap.Device.ID
		data.Device = &id
	}
	if !snap.Format.IsZero() {
		f := models.FormatFrom(snap.Format)
		data.Format = &f
	}
	if s.options.Rate != nil {
		data.FPS = s.options.Rate.FPS()
	}
	return &models.StateResponse{Body: data}
}

// captureError maps controller errors to HTTP status codes.
func captureError(err error) error {
	switch {
	case errors.Is(err, graph.ErrNoDevice), errors.Is(err, graph.ErrNoGraph):
		return huma.Error409Conflict(err.Error())
	case errors.Is(err, graph.ErrUnsupportedFormat):
		return huma.Error422UnprocessableEntity(err.Error())
	case errors.Is(err, graph.ErrSetupFailed):
		return huma.Error503ServiceUnavailable(err.Error())
	default:
		return huma.Error500InternalServerError("Capture operation failed", err)
	}
}
