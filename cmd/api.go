package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/nfcbox/internal/services"
	"github.com/desertthunder/nfcbox/internal/shared"
)

// APIGet makes a direct GET request to the device
func (r *Runner) APIGet(ctx context.Context, cmd *cli.Command) error {
	path := cmd.StringArg("path")
	if path == "" {
		return fmt.Errorf("%w: request path", shared.ErrMissingArgument)
	}

	r.logger.Info("GET request", "path", path)

	resp, err := r.device.Get(ctx, path)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}

	return r.writeResponse(resp, !cmd.Bool("json"))
}

// APIPost makes a direct POST request to the device
func (r *Runner) APIPost(ctx context.Context, cmd *cli.Command) error {
	path := cmd.StringArg("path")
	data := cmd.String("data")

	if path == "" {
		return fmt.Errorf("%w: request path", shared.ErrMissingArgument)
	}
	if data == "" {
		return fmt.Errorf("%w: --data flag is required", shared.ErrMissingArgument)
	}

	var jsonTest any
	if err := json.Unmarshal([]byte(data), &jsonTest); err != nil {
		return fmt.Errorf("%w: data is not valid JSON: %v", shared.ErrInvalidInput, err)
	}

	r.logger.Info("POST request", "path", path)

	resp, err := r.device.Post(ctx, path, []byte(data))
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}

	return r.writeResponse(resp, true)
}

func (r *Runner) writeResponse(resp *services.APIResponse, pretty bool) error {
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: status %d, body: %s", shared.ErrAPIRequest, resp.StatusCode, string(resp.Body))
	}

	if resp.IsJSON {
		return r.writeJSON(resp.JSONData, pretty)
	}

	if _, err := r.output.Write(resp.Body); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	_, err := r.output.Write([]byte("\n"))
	return err
}

// APIDump fetches every read-only endpoint and prints them as one document.
//
// Endpoint failures are collected in the dump instead of aborting it.
func (r *Runner) APIDump(ctx context.Context, cmd *cli.Command) error {
	type DumpData struct {
		Device   string              `json:"device"`
		Songs    any                 `json:"songs,omitempty"`
		Mappings any                 `json:"mappings,omitempty"`
		TagID    any                 `json:"tagid,omitempty"`
		Errors   []map[string]string `json:"errors,omitempty"`
	}

	dump := DumpData{Device: r.device.BaseURL()}

	r.logger.Info("dumping device state", "device", dump.Device)

	for _, ep := range []struct {
		path string
		dest *any
	}{
		{"/songs", &dump.Songs},
		{"/mappings", &dump.Mappings},
		{"/tagid", &dump.TagID},
	} {
		resp, err := r.device.Get(ctx, ep.path)
		switch {
		case err != nil:
			dump.Errors = append(dump.Errors, map[string]string{"endpoint": ep.path, "error": err.Error()})
			r.logger.Warn("failed to fetch", "endpoint", ep.path, "error", err)
		case resp.StatusCode < 200 || resp.StatusCode >= 300:
			dump.Errors = append(dump.Errors, map[string]string{"endpoint": ep.path, "error": fmt.Sprintf("status %d", resp.StatusCode)})
			r.logger.Warn("failed to fetch", "endpoint", ep.path, "status", resp.StatusCode)
		case resp.IsJSON:
			*ep.dest = resp.JSONData
		default:
			*ep.dest = string(resp.Body)
		}
	}

	if save := cmd.String("save"); save != "" {
		data, err := shared.MarshalJSON(dump, true)
		if err != nil {
			return fmt.Errorf("failed to marshal dump: %w", err)
		}
		if err := os.WriteFile(save, data, 0644); err != nil {
			r.logger.Warn("failed to save dump", "error", err)
		} else {
			r.logger.Info("dump saved", "file", save)
		}
	}

	return r.writeJSON(dump, cmd.Bool("pretty"))
}
