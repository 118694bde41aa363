package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/desertthunder/journeyx/internal/services"
	"github.com/desertthunder/journeyx/internal/shared"
	"github.com/urfave/cli/v3"
)

// APIGet makes a direct GET request to the backend with the stored session.
func (r *Runner) APIGet(ctx context.Context, cmd *cli.Command) error {
	return r.apiRequest(ctx, cmd, http.MethodGet)
}

// APIPost makes a direct POST request with a JSON body.
func (r *Runner) APIPost(ctx context.Context, cmd *cli.Command) error {
	return r.apiRequest(ctx, cmd, http.MethodPost)
}

// APIPut makes a direct PUT request with a JSON body.
func (r *Runner) APIPut(ctx context.Context, cmd *cli.Command) error {
	return r.apiRequest(ctx, cmd, http.MethodPut)
}

func (r *Runner) apiRequest(ctx context.Context, cmd *cli.Command, method string) error {
	path, err := stringArg(cmd, "path")
	if err != nil {
		return err
	}

	var data []byte
	if method != http.MethodGet {
		raw := cmd.String("data")
		if raw == "" {
			return fmt.Errorf("%w: --data flag is required", shared.ErrMissingArgument)
		}
		if !json.Valid([]byte(raw)) {
			return fmt.Errorf("%w: data is not valid JSON", shared.ErrInvalidInput)
		}
		data = []byte(raw)
	}

	w, err := r.workspace(ctx, false)
	if err != nil {
		return err
	}
	defer w.Close()

	r.logger.Info("raw request", "method", method, "path", path, "authenticated", w.userID() != 0)

	var resp *services.APIResponse
	switch method {
	case http.MethodPost:
		resp, err = w.api.Post(ctx, path, data)
	case http.MethodPut:
		resp, err = w.api.Put(ctx, path, data)
	default:
		resp, err = w.api.Get(ctx, path)
	}
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: status %d, body: %s", shared.ErrAPIRequest, resp.StatusCode, string(resp.Body))
	}

	if resp.IsJSON {
		return r.writeJSON(resp.JSONData, cmd.Bool("pretty"))
	}
	r.output.Write(resp.Body)
	r.output.Write([]byte("\n"))
	return nil
}

// apiCommand sends raw requests to the backend for debugging.
func apiCommand(r *Runner) *cli.Command {
	pathArg := func() []cli.Argument {
		return []cli.Argument{&cli.StringArg{Name: "path"}}
	}
	bodyFlags := func() []cli.Flag {
		return []cli.Flag{
			&cli.StringFlag{
				Name:    "data",
				Aliases: []string{"d"},
				Usage:   "JSON body to send",
			},
			prettyFlag(),
		}
	}

	return &cli.Command{
		Name:  "api",
		Usage: "Direct backend requests with the stored session",
		Commands: []*cli.Command{
			{
				Name:      "get",
				Usage:     "GET a path and print the response",
				Arguments: pathArg(),
				Flags:     []cli.Flag{prettyFlag()},
				Action:    r.APIGet,
			},
			{
				Name:      "post",
				Usage:     "POST a JSON body to a path",
				Arguments: pathArg(),
				Flags:     bodyFlags(),
				Action:    r.APIPost,
			},
			{
				Name:      "put",
				Usage:     "PUT a JSON body to a path",
				Arguments: pathArg(),
				Flags:     bodyFlags(),
				Action:    r.APIPut,
			},
		},
	}
}
