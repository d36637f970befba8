package loader

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/xeipuuv/gojsonschema"
)

const weightsManifestSchema = `{
  "type": "array",
  "items": {
    "type": "object",
    "required": ["paths", "weights"],
    "properties": {
      "paths": {"type": "array", "minItems": 1, "items": {"type": "string", "minLength": 1}},
      "weights": {
        "type": "array",
        "items": {
          "type": "object",
          "required": ["name", "shape"],
          "properties": {
            "name": {"type": "string", "minLength": 1},
            "shape": {"type": "array", "items": {"type": "integer", "minimum": 0}},
            "dtype": {"enum": ["float32"]}
          }
        }
      }
    }
  }
}`

var (
	layersSchema = gojsonschema.NewStringLoader(`{
  "type": "object",
  "required": ["modelTopology", "weightsManifest"],
  "properties": {
    "format": {"type": "string"},
    "modelTopology": {"type": "object"},
    "weightsManifest": ` + weightsManifestSchema + `
  }
}`)
	graphSchema = gojsonschema.NewStringLoader(`{
  "type": "object",
  "required": ["modelTopology", "weightsManifest"],
  "properties": {
    "format": {"type": "string"},
    "modelTopology": {
      "type": "object",
      "required": ["node"],
      "properties": {
        "node": {
          "type": "array",
          "minItems": 1,
          "items": {
            "type": "object",
            "required": ["name", "op"],
            "properties": {
              "name": {"type": "string"},
              "op": {"type": "string"},
              "input": {"type": "array", "items": {"type": "string"}}
            }
          }
        }
      }
    },
    "weightsManifest": ` + weightsManifestSchema + `
  }
}`)
)

// Paths under which layered manifests keep their layer list.
var layerListPaths = []string{
	"modelTopology.config.layers",
	"modelTopology.model_config.config.layers",
	"modelTopology.config",
}

var activations = map[string]bool{
	"linear":  true,
	"relu":    true,
	"relu6":   true,
	"elu":     true,
	"sigmoid": true,
	"tanh":    true,
	"softmax": true,
}

type weightSpec struct {
	Name  string `json:"name"`
	Shape []int  `json:"shape"`
	Dtype string `json:"dtype"`
}

type weightGroup struct {
	Paths   []string     `json:"paths"`
	Weights []weightSpec `json:"weights"`
}

// layerPlan names the weights and activation of one dense step.
type layerPlan struct {
	name       string
	kernel     string
	bias       string
	activation string
}

type manifest struct {
	format Format
	groups []weightGroup
	plan   []layerPlan
}

func validate(schema gojsonschema.JSONLoader, raw []byte, format Format) error {
	if !gjson.ValidBytes(raw) {
		return fmt.Errorf("manifest is not valid JSON")
	}
	if declared := gjson.GetBytes(raw, "format").String(); declared != "" && declared != string(format) {
		return fmt.Errorf("manifest declares format %q", declared)
	}
	res, err := gojsonschema.Validate(schema, gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("validate manifest: %w", err)
	}
	if !res.Valid() {
		msgs := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("invalid %s manifest: %s", format, strings.Join(msgs, "; "))
	}
	return nil
}

func decodeGroups(raw []byte) ([]weightGroup, error) {
	var groups []weightGroup
	if err := json.Unmarshal([]byte(gjson.GetBytes(raw, "weightsManifest").Raw), &groups); err != nil {
		return nil, fmt.Errorf("decode weightsManifest: %w", err)
	}
	return groups, nil
}

func parseLayers(raw []byte) (*manifest, error) {
	if err := validate(layersSchema, raw, FormatLayers); err != nil {
		return nil, err
	}
	var layers gjson.Result
	for _, p := range layerListPaths {
		if r := gjson.GetBytes(raw, p); r.IsArray() {
			layers = r
			break
		}
	}
	if !layers.Exists() {
		return nil, fmt.Errorf("manifest has no layer list")
	}

	var (
		plan   []layerPlan
		parseE error
	)
	layers.ForEach(func(_, layer gjson.Result) bool {
		class := layer.Get("class_name").String()
		name := layer.Get("config.name").String()
		switch class {
		case "InputLayer", "Dropout", "Flatten":
		case "Dense":
			act, err := activation(layer.Get("config.activation").String())
			if err != nil {
				parseE = fmt.Errorf("layer %s: %w", name, err)
				return false
			}
			lp := layerPlan{name: name, kernel: name + "/kernel", activation: act}
			if useBias := layer.Get("config.use_bias"); !useBias.Exists() || useBias.Bool() {
				lp.bias = name + "/bias"
			}
			plan = append(plan, lp)
		case "Activation":
			if len(plan) == 0 || plan[len(plan)-1].activation != "linear" {
				parseE = fmt.Errorf("layer %s: activation without a preceding linear dense layer", name)
				return false
			}
			act, err := activation(layer.Get("config.activation").String())
			if err != nil {
				parseE = fmt.Errorf("layer %s: %w", name, err)
				return false
			}
			plan[len(plan)-1].activation = act
		default:
			parseE = fmt.Errorf("unsupported layer class %q", class)
			return false
		}
		return true
	})
	if parseE != nil {
		return nil, parseE
	}
	if len(plan) == 0 {
		return nil, fmt.Errorf("manifest has no dense layers")
	}
	groups, err := decodeGroups(raw)
	if err != nil {
		return nil, err
	}
	return &manifest{format: FormatLayers, groups: groups, plan: plan}, nil
}

func parseGraph(raw []byte) (*manifest, error) {
	if err := validate(graphSchema, raw, FormatGraph); err != nil {
		return nil, err
	}
	var (
		plan   []layerPlan
		parseE error
	)
	gjson.GetBytes(raw, "modelTopology.node").ForEach(func(_, node gjson.Result) bool {
		name := node.Get("name").String()
		op := node.Get("op").String()
		var inputs []string
		for _, in := range node.Get("input").Array() {
			inputs = append(inputs, tensorName(in.String()))
		}
		switch op {
		case "Placeholder", "Const", "Identity", "NoOp":
		case "MatMul":
			if len(inputs) != 2 {
				parseE = fmt.Errorf("node %s: MatMul needs 2 inputs", name)
				return false
			}
			plan = append(plan, layerPlan{name: name, kernel: inputs[1], activation: "linear"})
		case "BiasAdd", "Add", "AddV2":
			if len(plan) == 0 || len(inputs) != 2 || plan[len(plan)-1].bias != "" {
				parseE = fmt.Errorf("node %s: %s must follow a MatMul", name, op)
				return false
			}
			plan[len(plan)-1].bias = inputs[1]
		case "Relu", "Relu6", "Elu", "Sigmoid", "Tanh", "Softmax":
			if len(plan) == 0 || plan[len(plan)-1].activation != "linear" {
				parseE = fmt.Errorf("node %s: %s must follow a MatMul", name, op)
				return false
			}
			plan[len(plan)-1].activation = strings.ToLower(op)
		default:
			parseE = fmt.Errorf("unsupported op %q", op)
			return false
		}
		return true
	})
	if parseE != nil {
		return nil, parseE
	}
	if len(plan) == 0 {
		return nil, fmt.Errorf("graph has no MatMul nodes")
	}
	groups, err := decodeGroups(raw)
	if err != nil {
		return nil, err
	}
	return &manifest{format: FormatGraph, groups: groups, plan: plan}, nil
}

// tensorName strips control-dependency and output-index decorations.
func tensorName(in string) string {
	in = strings.TrimPrefix(in, "^")
	if i := strings.LastIndexByte(in, ':'); i > 0 {
		in = in[:i]
	}
	return in
}

func activation(name string) (string, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return "linear", nil
	}
	if !activations[name] {
		return "", fmt.Errorf("unsupported activation %q", name)
	}
	return name, nil
}
