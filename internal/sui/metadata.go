package sui

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

type ModuleMetadata struct {
	PackageID  string             `json:"package_id"`
	ModuleName string             `json:"module_name"`
	Structs    []StructMetadata   `json:"structs"`
	Functions  []FunctionMetadata `json:"functions"`
}

type StructMetadata struct {
	Name      string          `json:"name"`
	Abilities []string        `json:"abilities"`
	Fields    []FieldMetadata `json:"fields"`
}

type FieldMetadata struct {
	Name string `json:"name"`
	Type string `json:"type_"`
}

type FunctionMetadata struct {
	Name        string   `json:"name"`
	Visibility  string   `json:"visibility"`
	IsEntry     bool     `json:"is_entry"`
	Parameters  []string `json:"parameters"`
	ReturnTypes []string `json:"return_types"`
}

type normalizedModule struct {
	Structs map[string]struct {
		Abilities struct {
			Abilities []string `json:"abilities"`
		} `json:"abilities"`
		Fields []struct {
			Name string          `json:"name"`
			Type json.RawMessage `json:"type"`
		} `json:"fields"`
	} `json:"structs"`
	ExposedFunctions map[string]struct {
		Visibility string            `json:"visibility"`
		IsEntry    bool              `json:"isEntry"`
		Parameters []json.RawMessage `json:"parameters"`
		Return     []json.RawMessage `json:"return"`
	} `json:"exposedFunctions"`
}

// ModuleMetadata fetches the normalized form of one Move module. Structs
// and functions are sorted by name.
func (c *Client) ModuleMetadata(ctx context.Context, packageID, module string) (ModuleMetadata, error) {
	var raw normalizedModule
	if err := c.Call(ctx, "sui_getNormalizedMoveModule", &raw, packageID, module); err != nil {
		return ModuleMetadata{}, err
	}

	md := ModuleMetadata{
		PackageID:  packageID,
		ModuleName: module,
		Structs:    make([]StructMetadata, 0, len(raw.Structs)),
		Functions:  make([]FunctionMetadata, 0, len(raw.ExposedFunctions)),
	}
	for _, name := range sortedKeys(raw.Structs) {
		s := raw.Structs[name]
		sm := StructMetadata{
			Name:      name,
			Abilities: append([]string{}, s.Abilities.Abilities...),
			Fields:    make([]FieldMetadata, 0, len(s.Fields)),
		}
		for _, f := range s.Fields {
			sm.Fields = append(sm.Fields, FieldMetadata{Name: f.Name, Type: TypeTag(f.Type)})
		}
		md.Structs = append(md.Structs, sm)
	}
	for _, name := range sortedKeys(raw.ExposedFunctions) {
		f := raw.ExposedFunctions[name]
		visibility := f.Visibility
		if visibility == "" {
			visibility = "Private"
		}
		md.Functions = append(md.Functions, FunctionMetadata{
			Name:        name,
			Visibility:  visibility,
			IsEntry:     f.IsEntry,
			Parameters:  typeTags(f.Parameters),
			ReturnTypes: typeTags(f.Return),
		})
	}
	return md, nil
}

// PackageModules lists the module names of a package, sorted.
func (c *Client) PackageModules(ctx context.Context, packageID string) ([]string, error) {
	var raw map[string]json.RawMessage
	if err := c.Call(ctx, "sui_getNormalizedMoveModulesByPackage", &raw, packageID); err != nil {
		return nil, err
	}
	return sortedKeys(raw), nil
}

// TypeTag renders a normalized Move type as source-like text, e.g.
// "&mut vector<0x2::coin::Coin>" or "T0".
func TypeTag(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return strings.TrimSpace(string(raw))
	}
	if v, ok := obj["Struct"]; ok {
		var st struct {
			Address       string            `json:"address"`
			Module        string            `json:"module"`
			Name          string            `json:"name"`
			TypeArguments []json.RawMessage `json:"typeArguments"`
		}
		_ = json.Unmarshal(v, &st)
		tag := fmt.Sprintf("%s::%s::%s", st.Address, st.Module, st.Name)
		if len(st.TypeArguments) > 0 {
			tag += "<" + strings.Join(typeTags(st.TypeArguments), ", ") + ">"
		}
		return tag
	}
	if v, ok := obj["Vector"]; ok {
		return "vector<" + TypeTag(v) + ">"
	}
	if v, ok := obj["Reference"]; ok {
		return "&" + TypeTag(v)
	}
	if v, ok := obj["MutableReference"]; ok {
		return "&mut " + TypeTag(v)
	}
	if v, ok := obj["TypeParameter"]; ok {
		return "T" + strings.TrimSpace(string(v))
	}
	return strings.TrimSpace(string(raw))
}

func typeTags(raw []json.RawMessage) []string {
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		out = append(out, TypeTag(r))
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
