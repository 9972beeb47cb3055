package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/haasonsaas/livebridge/internal/catalog"
	"github.com/haasonsaas/livebridge/internal/daw"
	"github.com/haasonsaas/livebridge/internal/store"
)

func registerStoreTools(r *Registry, deps Deps) {
	registerSnapshotTools(r, deps)
	registerMacroTools(r, deps)
	registerTemplateTools(r, deps)
	registerParameterMapTools(r, deps)
}

func registerSnapshotTools(r *Registry, deps Deps) {
	r.mustRegister(Tool{
		Name: "snapshot_device",
		Description: "Capture a device's current parameter values under a snapshot id, " +
			"restorable later as a group.",
		Schema: `{
			"type": "object",
			"properties": {
				"track_index": {"type": "integer", "minimum": 0},
				"device_index": {"type": "integer", "minimum": 0},
				"snapshot_id": {"type": "string", "minLength": 1}
			},
			"required": ["track_index", "device_index", "snapshot_id"]
		}`,
		ErrorPrefix: "could not snapshot device",
		Handler: func(ctx context.Context, args Args) (*Result, error) {
			track, device, err := deviceRef(args)
			if err != nil {
				return nil, err
			}
			id, err := args.String("snapshot_id")
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
			params := parameterValues(resp)
			if len(params) == 0 {
				return nil, daw.E(daw.KindDawReported, "device %d/%d reported no parameters", track, device)
			}
			snap := store.Snapshot{
				ID:         id,
				CreatedAt:  time.Now(),
				Device:     store.DeviceRef{TrackIndex: track, DeviceIndex: device},
				Parameters: params,
			}
			if err := deps.Snapshots.Save(snap); err != nil {
				return nil, err
			}
			return &Result{
				Message: fmt.Sprintf("snapshot %q captured (%d parameters)", id, len(params)),
				Data:    snap,
			}, nil
		},
	})

	r.mustRegister(Tool{
		Name:        "restore_snapshot",
		Description: "Restore a device to the parameter values captured in a snapshot.",
		Schema: `{
			"type": "object",
			"properties": {"snapshot_id": {"type": "string", "minLength": 1}},
			"required": ["snapshot_id"]
		}`,
		ErrorPrefix: "could not restore snapshot",
		Handler: func(ctx context.Context, args Args) (*Result, error) {
			id, err := args.String("snapshot_id")
			if err != nil {
				return nil, err
			}
			snap, ok := deps.Snapshots.Get(id)
			if !ok {
				return nil, daw.E(daw.KindInvalidInput, "no snapshot %q", id)
			}
			batch := make([]any, 0, len(snap.Parameters))
			for _, p := range snap.Parameters {
				batch = append(batch, map[string]any{"parameter_name": p.Name, "value": p.Value})
			}
			resp, err := deps.Pipeline.SendCommand(ctx, daw.Command{
				Type: "set_device_parameters_batch",
				Params: map[string]any{
					"track_index":  snap.Device.TrackIndex,
					"device_index": snap.Device.DeviceIndex,
					"parameters":   batch,
				},
			}, daw.SendOptions{})
			if err != nil {
				return nil, err
			}
			return &Result{
				Message: fmt.Sprintf("snapshot %q restored (%d parameters)", id, len(batch)),
				Data:    resultData(resp),
			}, nil
		},
	})

	r.mustRegister(Tool{
		Name:        "list_snapshots",
		Description: "List stored device snapshots.",
		ErrorPrefix: "could not list snapshots",
		Handler: func(ctx context.Context, args Args) (*Result, error) {
			snaps := deps.Snapshots.List()
			return &Result{
				Message: fmt.Sprintf("%d snapshots stored", len(snaps)),
				Data:    map[string]any{"snapshots": snaps},
			}, nil
		},
	})

	r.mustRegister(Tool{
		Name:        "delete_snapshot",
		Description: "Delete a stored snapshot by id.",
		Schema: `{
			"type": "object",
			"properties": {"snapshot_id": {"type": "string", "minLength": 1}},
			"required": ["snapshot_id"]
		}`,
		ErrorPrefix: "could not delete snapshot",
		Handler: func(ctx context.Context, args Args) (*Result, error) {
			id, err := args.String("snapshot_id")
			if err != nil {
				return nil, err
			}
			if !deps.Snapshots.Delete(id) {
				return nil, daw.E(daw.KindInvalidInput, "no snapshot %q", id)
			}
			return &Result{Message: fmt.Sprintf("snapshot %q deleted", id)}, nil
		},
	})
}

func registerMacroTools(r *Registry, deps Deps) {
	r.mustRegister(Tool{
		Name: "create_macro",
		Description: "Create or replace a macro controller: one 0..1 input fanned out to " +
			"several parameters, each with its own output range and curve.",
		Schema: `{
			"type": "object",
			"properties": {
				"macro_id": {"type": "string", "minLength": 1},
				"bindings": {
					"type": "array",
					"minItems": 1,
					"items": {
						"type": "object",
						"properties": {
							"track_index": {"type": "integer", "minimum": 0},
							"device_index": {"type": "integer", "minimum": 0},
							"parameter_name": {"type": "string", "minLength": 1},
							"min_out": {"type": "number"},
							"max_out": {"type": "number"},
							"curve": {"enum": ["linear", "exponential", "logarithmic"]}
						},
						"required": ["track_index", "device_index", "parameter_name", "min_out", "max_out"]
					}
				}
			},
			"required": ["macro_id", "bindings"]
		}`,
		ErrorPrefix: "could not create macro",
		Handler: func(ctx context.Context, args Args) (*Result, error) {
			id, err := args.String("macro_id")
			if err != nil {
				return nil, err
			}
			rawBindings, err := args.List("bindings")
			if err != nil {
				return nil, err
			}
			macro := store.Macro{ID: id}
			for i, raw := range rawBindings {
				b, ok := raw.(map[string]any)
				if !ok {
					return nil, daw.E(daw.KindInvalidInput, "binding %d is not an object", i)
				}
				binding, err := macroBinding(Args(b))
				if err != nil {
					return nil, err
				}
				macro.Bindings = append(macro.Bindings, binding)
			}
			if err := deps.Macros.Put(macro); err != nil {
				return nil, err
			}
			return &Result{
				Message: fmt.Sprintf("macro %q with %d bindings", id, len(macro.Bindings)),
				Data:    macro,
			}, nil
		},
	})

	r.mustRegister(Tool{
		Name: "apply_macro",
		Description: "Drive a macro with a 0..1 value; every binding gets the curved, " +
			"range-mapped result.",
		Schema: `{
			"type": "object",
			"properties": {
				"macro_id": {"type": "string", "minLength": 1},
				"value": {"type": "number", "minimum": 0, "maximum": 1}
			},
			"required": ["macro_id", "value"]
		}`,
		ErrorPrefix: "could not apply macro",
		Handler: func(ctx context.Context, args Args) (*Result, error) {
			id, err := args.String("macro_id")
			if err != nil {
				return nil, err
			}
			value, err := args.Float("value")
			if err != nil {
				return nil, err
			}
			macro, ok := deps.Macros.Get(id)
			if !ok {
				return nil, daw.E(daw.KindInvalidInput, "no macro %q", id)
			}
			applied := make([]map[string]any, 0, len(macro.Bindings))
			for _, b := range macro.Bindings {
				out := b.Apply(value)
				if _, err := deps.Pipeline.SendCommand(ctx, daw.Command{
					Type: "set_device_parameter",
					Params: map[string]any{
						"track_index":    b.Device.TrackIndex,
						"device_index":   b.Device.DeviceIndex,
						"parameter_name": b.ParameterName,
						"value":          out,
					},
				}, daw.SendOptions{}); err != nil {
					return nil, err
				}
				applied = append(applied, map[string]any{"parameter": b.ParameterName, "value": out})
			}
			return &Result{
				Message: fmt.Sprintf("macro %q applied at %.3f to %d parameters", id, value, len(applied)),
				Data:    map[string]any{"applied": applied},
			}, nil
		},
	})

	r.mustRegister(Tool{
		Name:        "list_macros",
		Description: "List stored macro controllers.",
		ErrorPrefix: "could not list macros",
		Handler: func(ctx context.Context, args Args) (*Result, error) {
			macros := deps.Macros.List()
			return &Result{
				Message: fmt.Sprintf("%d macros stored", len(macros)),
				Data:    map[string]any{"macros": macros},
			}, nil
		},
	})

	r.mustRegister(Tool{
		Name:        "delete_macro",
		Description: "Delete a macro controller by id.",
		Schema: `{
			"type": "object",
			"properties": {"macro_id": {"type": "string", "minLength": 1}},
			"required": ["macro_id"]
		}`,
		ErrorPrefix: "could not delete macro",
		Handler: func(ctx context.Context, args Args) (*Result, error) {
			id, err := args.String("macro_id")
			if err != nil {
				return nil, err
			}
			if !deps.Macros.Delete(id) {
				return nil, daw.E(daw.KindInvalidInput, "no macro %q", id)
			}
			return &Result{Message: fmt.Sprintf("macro %q deleted", id)}, nil
		},
	})
}

func registerTemplateTools(r *Registry, deps Deps) {
	r.mustRegister(Tool{
		Name: "save_effect_chain_template",
		Description: "Persist an ordered device chain (URIs plus parameter overrides) " +
			"as a reusable template.",
		Schema: `{
			"type": "object",
			"properties": {
				"name": {"type": "string", "minLength": 1},
				"devices": {
					"type": "array",
					"minItems": 1,
					"items": {
						"type": "object",
						"properties": {
							"uri": {"type": "string", "minLength": 1},
							"parameter_overrides": {
								"type": "object",
								"additionalProperties": {"type": "number"}
							}
						},
						"required": ["uri"]
					}
				}
			},
			"required": ["name", "devices"]
		}`,
		ErrorPrefix: "could not save template",
		Handler: func(ctx context.Context, args Args) (*Result, error) {
			name, err := args.String("name")
			if err != nil {
				return nil, err
			}
			rawDevices, err := args.List("devices")
			if err != nil {
				return nil, err
			}
			tpl := store.ChainTemplate{Name: name}
			for i, raw := range rawDevices {
				m, ok := raw.(map[string]any)
				if !ok {
					return nil, daw.E(daw.KindInvalidInput, "device %d is not an object", i)
				}
				dev := store.TemplateDevice{}
				dev.URI, _ = m["uri"].(string)
				if overrides, ok := m["parameter_overrides"].(map[string]any); ok {
					dev.ParameterOverrides = map[string]float64{}
					for k, v := range overrides {
						f, ok := toFloat(v)
						if !ok {
							return nil, daw.E(daw.KindInvalidInput, "override %q on device %d must be a number", k, i)
						}
						dev.ParameterOverrides[k] = f
					}
				}
				tpl.Devices = append(tpl.Devices, dev)
			}
			if err := deps.Templates.Save(tpl); err != nil {
				return nil, err
			}
			return &Result{
				Message: fmt.Sprintf("template %q saved (%d devices)", name, len(tpl.Devices)),
				Data:    tpl,
			}, nil
		},
	})

	r.mustRegister(Tool{
		Name:        "load_effect_chain_template",
		Description: "Read back a stored effect-chain template.",
		Schema: `{
			"type": "object",
			"properties": {"name": {"type": "string", "minLength": 1}},
			"required": ["name"]
		}`,
		ErrorPrefix: "could not load template",
		Handler: func(ctx context.Context, args Args) (*Result, error) {
			name, err := args.String("name")
			if err != nil {
				return nil, err
			}
			tpl, ok := deps.Templates.Get(name)
			if !ok {
				return nil, daw.E(daw.KindInvalidInput, "no template %q", name)
			}
			return &Result{Message: fmt.Sprintf("template %q loaded", name), Data: tpl}, nil
		},
	})

	r.mustRegister(Tool{
		Name: "apply_effect_chain_template",
		Description: "Load a template's devices onto a track in order, applying each " +
			"device's parameter overrides after it lands.",
		Schema: `{
			"type": "object",
			"properties": {
				"name": {"type": "string", "minLength": 1},
				"track_index": {"type": "integer", "minimum": 0}
			},
			"required": ["name", "track_index"]
		}`,
		ErrorPrefix: "could not apply template",
		Handler: func(ctx context.Context, args Args) (*Result, error) {
			name, err := args.String("name")
			if err != nil {
				return nil, err
			}
			track, err := args.Int("track_index")
			if err != nil {
				return nil, err
			}
			tpl, ok := deps.Templates.Get(name)
			if !ok {
				return nil, daw.E(daw.KindInvalidInput, "no template %q", name)
			}

			var applied []map[string]any
			for _, dev := range tpl.Devices {
				uri := deps.Catalog.Resolve(dev.URI, catalog.DefaultResolveTimeout)
				loaded, err := deps.Pipeline.SendCommand(ctx, daw.Command{
					Type:   "load_instrument_or_effect",
					Params: map[string]any{"track_index": track, "uri": uri},
				}, daw.SendOptions{})
				if err != nil {
					return nil, err
				}
				step := map[string]any{"uri": uri}
				deviceIndex, haveIndex := deviceIndexFrom(loaded)
				if len(dev.ParameterOverrides) > 0 && haveIndex {
					batch := make([]any, 0, len(dev.ParameterOverrides))
					for pname, pvalue := range dev.ParameterOverrides {
						batch = append(batch, map[string]any{"parameter_name": pname, "value": pvalue})
					}
					if _, err := deps.Pipeline.SendCommand(ctx, daw.Command{
						Type: "set_device_parameters_batch",
						Params: map[string]any{
							"track_index": track, "device_index": deviceIndex, "parameters": batch,
						},
					}, daw.SendOptions{}); err != nil {
						return nil, err
					}
					step["overrides_applied"] = len(batch)
				} else if len(dev.ParameterOverrides) > 0 {
					// The DAW did not report where the device landed; skipping
					// overrides beats writing them onto the wrong device.
					step["overrides_skipped"] = true
				}
				applied = append(applied, step)
			}
			return &Result{
				Message: fmt.Sprintf("template %q applied to track %d (%d devices)", name, track, len(applied)),
				Data:    map[string]any{"devices": applied},
			}, nil
		},
	})

	r.mustRegister(Tool{
		Name:        "list_effect_chain_templates",
		Description: "List stored effect-chain templates.",
		ErrorPrefix: "could not list templates",
		Handler: func(ctx context.Context, args Args) (*Result, error) {
			tpls := deps.Templates.List()
			return &Result{
				Message: fmt.Sprintf("%d templates stored", len(tpls)),
				Data:    map[string]any{"templates": tpls},
			}, nil
		},
	})

	r.mustRegister(Tool{
		Name:        "delete_effect_chain_template",
		Description: "Delete a stored effect-chain template.",
		Schema: `{
			"type": "object",
			"properties": {"name": {"type": "string", "minLength": 1}},
			"required": ["name"]
		}`,
		ErrorPrefix: "could not delete template",
		Handler: func(ctx context.Context, args Args) (*Result, error) {
			name, err := args.String("name")
			if err != nil {
				return nil, err
			}
			removed, err := deps.Templates.Delete(name)
			if err != nil {
				return nil, err
			}
			if !removed {
				return nil, daw.E(daw.KindInvalidInput, "no template %q", name)
			}
			return &Result{Message: fmt.Sprintf("template %q deleted", name)}, nil
		},
	})
}

func registerParameterMapTools(r *Registry, deps Deps) {
	r.mustRegister(Tool{
		Name:        "get_parameter_map",
		Description: "Look up the friendly-name table for a device kind.",
		Schema: `{
			"type": "object",
			"properties": {"map_id": {"type": "string", "minLength": 1}},
			"required": ["map_id"]
		}`,
		ErrorPrefix: "could not read parameter map",
		Handler: func(ctx context.Context, args Args) (*Result, error) {
			id, err := args.String("map_id")
			if err != nil {
				return nil, err
			}
			pm, ok := deps.ParamMaps.Get(id)
			if !ok {
				return nil, daw.E(daw.KindInvalidInput, "no parameter map %q", id)
			}
			return &Result{Message: fmt.Sprintf("parameter map %q retrieved", id), Data: pm}, nil
		},
	})

	r.mustRegister(Tool{
		Name:        "list_parameter_maps",
		Description: "List the seeded parameter maps.",
		ErrorPrefix: "could not list parameter maps",
		Handler: func(ctx context.Context, args Args) (*Result, error) {
			maps := deps.ParamMaps.List()
			return &Result{
				Message: fmt.Sprintf("%d parameter maps", len(maps)),
				Data:    map[string]any{"maps": maps},
			}, nil
		},
	})
}

// macroBinding converts one raw binding object.
func macroBinding(b Args) (store.MacroBinding, error) {
	track, err := b.Int("track_index")
	if err != nil {
		return store.MacroBinding{}, err
	}
	device, err := b.Int("device_index")
	if err != nil {
		return store.MacroBinding{}, err
	}
	name, err := b.String("parameter_name")
	if err != nil {
		return store.MacroBinding{}, err
	}
	minOut, err := b.Float("min_out")
	if err != nil {
		return store.MacroBinding{}, err
	}
	maxOut, err := b.Float("max_out")
	if err != nil {
		return store.MacroBinding{}, err
	}
	curve, err := b.StringOr("curve", string(store.CurveLinear))
	if err != nil {
		return store.MacroBinding{}, err
	}
	return store.MacroBinding{
		Device:        store.DeviceRef{TrackIndex: track, DeviceIndex: device},
		ParameterName: name,
		MinOut:        minOut,
		MaxOut:        maxOut,
		Curve:         store.Curve(curve),
	}, nil
}

// parameterValues extracts {name, value} pairs from a device-parameter
// listing response.
func parameterValues(resp daw.Response) []store.ParameterValue {
	raw, _ := resp.Result["parameters"].([]any)
	out := make([]store.ParameterValue, 0, len(raw))
	for _, entry := range raw {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		name, _ := m["name"].(string)
		value, ok := toFloat(m["value"])
		if name == "" || !ok {
			continue
		}
		out = append(out, store.ParameterValue{Name: name, Value: value})
	}
	return out
}

// deviceIndexFrom digs the landed device's index out of a load response.
func deviceIndexFrom(resp daw.Response) (int, bool) {
	for _, key := range []string{"device_index", "index"} {
		if v, ok := resp.Result[key]; ok {
			if n, ok := toInt(v); ok {
				return n, true
			}
		}
	}
	return 0, false
}
