package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/videofx/internal/api/models"
	"github.com/smazurov/videofx/internal/hostui"
)

// CommandInput addresses one command as site/name.
type CommandInput struct {
	Site string `path:"site" example:"options" doc:"Extension site"`
	Name string `path:"name" example:"negate" doc:"Command name"`
}

// CommandListInput optionally filters by site.
type CommandListInput struct {
	Site string `query:"site" example:"options" doc:"Only list commands of this site"`
}

func (s *Server) registerCommandRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-commands",
		Method:      http.MethodGet,
		Path:        "/api/commands",
		Summary:     "List Commands",
		Description: "Commands installed by plugins, with their check state",
		Tags:        []string{"commands"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, input *CommandListInput) (*models.CommandsResponse, error) {
		return &models.CommandsResponse{
			Body: models.CommandsData{
				Sites:    s.options.Commands.Sites(),
				Commands: s.options.Commands.Commands(input.Site),
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "invoke-command",
		Method:      http.MethodPost,
		Path:        "/api/commands/{site}/{name}",
		Summary:     "Invoke Command",
		Description: "Run a plugin command. Grouped commands become the checked member of their group",
		Tags:        []string{"commands"},
		Security:    withAuth(),
		Errors:      []int{401, 404, 500},
	}, func(_ context.Context, input *CommandInput) (*models.CommandResponse, error) {
		info, err := s.options.Commands.Invoke(input.Site + "/" + input.Name)
		if errors.Is(err, hostui.ErrUnknownCommand) {
			return nil, huma.Error404NotFound(err.Error())
		}
		if err != nil {
			return nil, huma.Error500InternalServerError("Command failed", err)
		}
		return &models.CommandResponse{Body: info}, nil
	})
}
