package tools

import (
	"context"
	"fmt"

	"github.com/haasonsaas/livebridge/internal/catalog"
	"github.com/haasonsaas/livebridge/internal/daw"
)

const deviceRefSchema = `{
	"type": "object",
	"properties": {
		"track_index": {"type": "integer", "minimum": 0},
		"device_index": {"type": "integer", "minimum": 0}
	},
	"required": ["track_index", "device_index"]
}`

func registerDeviceTools(r *Registry, deps Deps) {
	r.mustRegister(Tool{
		Name:        "get_devices",
		Description: "List the devices on a track.",
		Schema:      trackIndexSchema,
		ErrorPrefix: "could not list devices",
		Handler: func(ctx context.Context, args Args) (*Result, error) {
			track, err := args.Int("track_index")
			if err != nil {
				return nil, err
			}
			resp, err := deps.Pipeline.SendCommand(ctx, daw.Command{
				Type:   "get_devices",
				Params: map[string]any{"track_index": track},
			}, daw.SendOptions{})
			if err != nil {
				return nil, err
			}
			return &Result{Message: fmt.Sprintf("devices on track %d listed", track), Data: resultData(resp)}, nil
		},
	})

	r.mustRegister(Tool{
		Name: "load_instrument_or_effect",
		Description: "Load an instrument or effect onto a track by catalog URI or by " +
			"human name (resolved through the catalog when populated).",
		Schema: `{
			"type": "object",
			"properties": {
				"track_index": {"type": "integer", "minimum": 0},
				"uri": {"type": "string", "minLength": 1}
			},
			"required": ["track_index", "uri"]
		}`,
		ErrorPrefix: "could not load device",
		Handler: func(ctx context.Context, args Args) (*Result, error) {
			track, err := args.Int("track_index")
			if err != nil {
				return nil, err
			}
			input, err := args.String("uri")
			if err != nil {
				return nil, err
			}
			uri := deps.Catalog.Resolve(input, catalog.DefaultResolveTimeout)
			resp, err := deps.Pipeline.SendCommand(ctx, daw.Command{
				Type:   "load_instrument_or_effect",
				Params: map[string]any{"track_index": track, "uri": uri},
			}, daw.SendOptions{})
			if err != nil {
				return nil, err
			}
			return &Result{
				Message: fmt.Sprintf("loaded %s onto track %d", input, track),
				Data:    map[string]any{"uri": uri, "result": resultData(resp)},
			}, nil
		},
	})

	r.mustRegister(Tool{
		Name:        "get_device_parameters",
		Description: "List the visible parameters of a device with current values.",
		Schema:      deviceRefSchema,
		ErrorPrefix: "could not read device parameters",
		Handler: func(ctx context.Context, args Args) (*Result, error) {
			track, device, err := deviceRef(args)
			if err != nil {
				return nil, err
			}
			resp, err := deps.Pipeline.SendCommand(ctx, daw.Command{
				Type:   "get_device_parameters",
				Params: map[string]any{"track_index": track, "device_index": device},
			}, daw.SendOptions{})
			if err != nil {
				return nil, err
			}
			return &Result{Message: "device parameters retrieved", Data: resultData(resp)}, nil
		},
	})

	r.mustRegister(Tool{
		Name:        "set_device_parameter",
		Description: "Set one device parameter by index or name.",
		Schema: `{
			"type": "object",
			"properties": {
				"track_index": {"type": "integer", "minimum": 0},
				"device_index": {"type": "integer", "minimum": 0},
				"parameter_index": {"type": "integer", "minimum": 0},
				"parameter_name": {"type": "string"},
				"value": {"type": "number"}
			},
			"required": ["track_index", "device_index", "value"]
		}`,
		ErrorPrefix: "could not set parameter",
		Handler: func(ctx context.Context, args Args) (*Result, error) {
			track, device, err := deviceRef(args)
			if err != nil {
				return nil, err
			}
			value, err := args.Float("value")
			if err != nil {
				return nil, err
			}
			params := map[string]any{"track_index": track, "device_index": device, "value": value}
			if index, err := args.IntOr("parameter_index", -1); err != nil {
				return nil, err
			} else if index >= 0 {
				params["parameter_index"] = index
			} else if name, err := args.StringOr("parameter_name", ""); err != nil {
				return nil, err
			} else if name != "" {
				params["parameter_name"] = name
			} else {
				return nil, daw.E(daw.KindInvalidInput, "either parameter_index or parameter_name is required")
			}
			resp, err := deps.Pipeline.SendCommand(ctx, daw.Command{
				Type:   "set_device_parameter",
				Params: params,
			}, daw.SendOptions{})
			if err != nil {
				return nil, err
			}
			return &Result{Message: "parameter set", Data: resultData(resp)}, nil
		},
	})

	r.mustRegister(Tool{
		Name: "set_device_parameters_batch",
		Description: "Set several device parameters in one DAW round trip. " +
			"Each entry is {parameter_index, value}.",
		Schema: `{
			"type": "object",
			"properties": {
				"track_index": {"type": "integer", "minimum": 0},
				"device_index": {"type": "integer", "minimum": 0},
				"parameters": {
					"type": "array",
					"minItems": 1,
					"items": {
						"type": "object",
						"properties": {
							"parameter_index": {"type": "integer", "minimum": 0},
							"value": {"type": "number"}
						},
						"required": ["parameter_index", "value"]
					}
				}
			},
			"required": ["track_index", "device_index", "parameters"]
		}`,
		ErrorPrefix: "could not set parameters",
		Handler: func(ctx context.Context, args Args) (*Result, error) {
			track, device, err := deviceRef(args)
			if err != nil {
				return nil, err
			}
			parameters, err := args.List("parameters")
			if err != nil {
				return nil, err
			}
			resp, err := deps.Pipeline.SendCommand(ctx, daw.Command{
				Type: "set_device_parameters_batch",
				Params: map[string]any{
					"track_index": track, "device_index": device, "parameters": parameters,
				},
			}, daw.SendOptions{})
			if err != nil {
				return nil, err
			}
			return &Result{
				Message: fmt.Sprintf("%d parameters set on device %d/%d", len(parameters), track, device),
				Data:    resultData(resp),
			}, nil
		},
	})

	r.mustRegister(Tool{
		Name: "stream_parameter_value",
		Description: "Send a parameter value on the realtime UDP channel: fire-and-forget, " +
			"no confirmation, intended for continuous sweeps.",
		Schema: `{
			"type": "object",
			"properties": {
				"track_index": {"type": "integer", "minimum": 0},
				"device_index": {"type": "integer", "minimum": 0},
				"parameter_index": {"type": "integer", "minimum": 0},
				"value": {"type": "number"}
			},
			"required": ["track_index", "device_index", "parameter_index", "value"]
		}`,
		ErrorPrefix: "could not stream value",
		Handler: func(ctx context.Context, args Args) (*Result, error) {
			track, device, err := deviceRef(args)
			if err != nil {
				return nil, err
			}
			index, err := args.Int("parameter_index")
			if err != nil {
				return nil, err
			}
			value, err := args.Float("value")
			if err != nil {
				return nil, err
			}
			err = deps.Pipeline.SendRealtime(daw.Command{
				Type: "set_parameter_rt",
				Params: map[string]any{
					"track_index": track, "device_index": device,
					"parameter_index": index, "value": value,
				},
			})
			if err != nil {
				return nil, err
			}
			return &Result{Message: "value streamed"}, nil
		},
	})
}

func deviceRef(args Args) (track, device int, err error) {
	if track, err = args.Int("track_index"); err != nil {
		return 0, 0, err
	}
	if device, err = args.Int("device_index"); err != nil {
		return 0, 0, err
	}
	return track, device, nil
}
