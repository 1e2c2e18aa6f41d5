package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/videofx/internal/graph"
	"github.com/smazurov/videofx/internal/snapshot"
)

const snapshotTimeout = 2 * time.Second

// SnapshotSource grabs the next frame leaving the preprocessing chain.
type SnapshotSource interface {
	Grab(ctx context.Context) (snapshot.Frame, error)
}

// SnapshotInput shapes the returned image.
type SnapshotInput struct {
	Width   int  `query:"width" minimum:"0" example:"320" doc:"Scale down to this width; 0 keeps the frame size"`
	Caption bool `query:"caption" doc:"Stamp device, format and capture time along the bottom edge"`
}

// SnapshotOutput is a PNG image.
type SnapshotOutput struct {
	ContentType string `header:"Content-Type"`
	Body        []byte
}

func (s *Server) registerSnapshotRoutes() {
	if s.options.Snapshots == nil {
		return
	}

	huma.Register(s.api, huma.Operation{
		OperationID: "get-snapshot",
		Method:      http.MethodGet,
		Path:        "/api/capture/snapshot",
		Summary:     "Snapshot",
		Description: "PNG of the next processed frame, effects applied",
		Tags:        []string{"capture"},
		Security:    withAuth(),
		Errors:      []int{401, 409, 422, 500, 503},
	}, func(ctx context.Context, input *SnapshotInput) (*SnapshotOutput, error) {
		snap := s.options.Capture.Snapshot()
		if snap.State != graph.StateRunning {
			return nil, huma.Error409Conflict(fmt.Sprintf("capture is %s", snap.State))
		}

		ctx, cancel := context.WithTimeout(ctx, snapshotTimeout)
		defer cancel()
		fr, err := s.options.Snapshots.Grab(ctx)
		if err != nil {
			return nil, huma.Error503ServiceUnavailable("No frame delivered in time", err)
		}

		img, err := snapshot.Decode(fr, snap.Format)
		if errors.Is(err, snapshot.ErrUnsupportedFormat) {
			return nil, huma.Error422UnprocessableEntity(err.Error())
		}
		if err != nil {
			return nil, huma.Error500InternalServerError("Failed to decode frame", err)
		}
		img = snapshot.Thumbnail(img, input.Width)
		if input.Caption {
			snapshot.Caption(img, fmt.Sprintf("%s  %s  %s",
				snap.Device.Name, snap.Format, fr.Captured.Format("15:04:05")))
		}

		var buf bytes.Buffer
		if err := snapshot.EncodePNG(&buf, img); err != nil {
			return nil, huma.Error500InternalServerError("Failed to encode snapshot", err)
		}
		return &SnapshotOutput{ContentType: "image/png", Body: buf.Bytes()}, nil
	})
}
