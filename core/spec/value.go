package spec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ValueKind indicates the type of a config value
type ValueKind int

const (
	KindNull ValueKind = iota
	KindString
	KindNumber
	KindBool
	KindList
	KindMap
)

// String returns the kind name
func (k ValueKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	case KindNull:
		return "null"
	default:
		return "unknown"
	}
}

// Value is a tagged config value. Component config and spec metadata are
// heterogeneous; a closed sum keeps serialization faithful instead of
// collapsing everything to strings or untyped maps.
type Value struct {
	Kind ValueKind
	Str  string
	Num  float64
	Bool bool
	List []Value
	Map  map[string]Value
}

// String creates a string value
func String(s string) Value {
	return Value{Kind: KindString, Str: s}
}

// Number creates a numeric value
func Number(f float64) Value {
	return Value{Kind: KindNumber, Num: f}
}

// Int creates a numeric value from an integer
func Int(n int) Value {
	return Value{Kind: KindNumber, Num: float64(n)}
}

// BoolValue creates a boolean value
func BoolValue(b bool) Value {
	return Value{Kind: KindBool, Bool: b}
}

// List creates a list value
func List(items ...Value) Value {
	return Value{Kind: KindList, List: items}
}

// MapValue creates a map value
func MapValue(m map[string]Value) Value {
	return Value{Kind: KindMap, Map: m}
}

// Null creates a null value
func Null() Value {
	return Value{Kind: KindNull}
}

// FromInterface converts a plain Go value into a tagged Value
func FromInterface(x interface{}) Value {
	switch v := x.(type) {
	case nil:
		return Null()
	case string:
		return String(v)
	case bool:
		return BoolValue(v)
	case float64:
		return Number(v)
	case float32:
		return Number(float64(v))
	case int:
		return Number(float64(v))
	case int64:
		return Number(float64(v))
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return String(v.String())
		}
		return Number(f)
	case []interface{}:
		items := make([]Value, 0, len(v))
		for _, item := range v {
			items = append(items, FromInterface(item))
		}
		return Value{Kind: KindList, List: items}
	case map[string]interface{}:
		m := make(map[string]Value, len(v))
		for k, item := range v {
			m[k] = FromInterface(item)
		}
		return Value{Kind: KindMap, Map: m}
	default:
		return String(fmt.Sprintf("%v", v))
	}
}

// AsString returns the value as a string, or empty if not a string
func (v Value) AsString() string {
	if v.Kind != KindString {
		return ""
	}
	return v.Str
}

// AsFloat returns the value as a float64, or 0 if not a number
func (v Value) AsFloat() float64 {
	if v.Kind != KindNumber {
		return 0
	}
	return v.Num
}

// AsInt returns the value as an int
func (v Value) AsInt() int {
	return int(v.AsFloat())
}

// AsBool returns the value as a bool
func (v Value) AsBool() bool {
	if v.Kind != KindBool {
		return false
	}
	return v.Bool
}

// AsList returns the list items, or nil
func (v Value) AsList() []Value {
	if v.Kind != KindList {
		return nil
	}
	return v.List
}

// AsMap returns the map entries, or nil
func (v Value) AsMap() map[string]Value {
	if v.Kind != KindMap {
		return nil
	}
	return v.Map
}

// Interface returns the plain Go representation
func (v Value) Interface() interface{} {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindNumber:
		if isIntegral(v.Num) {
			return int64(v.Num)
		}
		return v.Num
	case KindBool:
		return v.Bool
	case KindList:
		out := make([]interface{}, 0, len(v.List))
		for _, item := range v.List {
			out = append(out, item.Interface())
		}
		return out
	case KindMap:
		out := make(map[string]interface{}, len(v.Map))
		for k, item := range v.Map {
			out[k] = item.Interface()
		}
		return out
	default:
		return nil
	}
}

// Equal reports deep equality of two values
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindString:
		return v.Str == o.Str
	case KindNumber:
		return v.Num == o.Num
	case KindBool:
		return v.Bool == o.Bool
	case KindList:
		if len(v.List) != len(o.List) {
			return false
		}
		for i := range v.List {
			if !v.List[i].Equal(o.List[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(v.Map) != len(o.Map) {
			return false
		}
		for k, item := range v.Map {
			other, ok := o.Map[k]
			if !ok || !item.Equal(other) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

// Clone returns a deep copy
func (v Value) Clone() Value {
	out := v
	if v.List != nil {
		out.List = make([]Value, len(v.List))
		for i, item := range v.List {
			out.List[i] = item.Clone()
		}
	}
	if v.Map != nil {
		out.Map = make(map[string]Value, len(v.Map))
		for k, item := range v.Map {
			out.Map[k] = item.Clone()
		}
	}
	return out
}

func isIntegral(f float64) bool {
	return f == math.Trunc(f) && math.Abs(f) < 1<<53 && !math.IsInf(f, 0) && !math.IsNaN(f)
}

// yamlNode builds an explicitly tagged node so strings like "true" stay
// strings and map keys serialize in sorted order
func (v Value) yamlNode() *yaml.Node {
	switch v.Kind {
	case KindString:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v.Str}
	case KindNumber:
		if isIntegral(v.Num) {
			return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.FormatInt(int64(v.Num), 10)}
		}
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!float", Value: strconv.FormatFloat(v.Num, 'g', -1, 64)}
	case KindBool:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: strconv.FormatBool(v.Bool)}
	case KindList:
		node := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, item := range v.List {
			node.Content = append(node.Content, item.yamlNode())
		}
		return node
	case KindMap:
		node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for _, k := range sortedKeys(v.Map) {
			item := v.Map[k]
			node.Content = append(node.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k},
				item.yamlNode())
		}
		return node
	default:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}
	}
}

// MarshalYAML implements yaml.Marshaler
func (v Value) MarshalYAML() (interface{}, error) {
	return v.yamlNode(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler
func (v *Value) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.AliasNode && node.Alias != nil {
		return v.UnmarshalYAML(node.Alias)
	}
	switch node.Kind {
	case yaml.ScalarNode:
		switch node.Tag {
		case "!!null":
			*v = Null()
		case "!!bool":
			b, err := strconv.ParseBool(node.Value)
			if err != nil {
				return fmt.Errorf("line %d: bad bool %q", node.Line, node.Value)
			}
			*v = BoolValue(b)
		case "!!int":
			n, err := strconv.ParseInt(node.Value, 0, 64)
			if err != nil {
				return fmt.Errorf("line %d: bad int %q", node.Line, node.Value)
			}
			*v = Number(float64(n))
		case "!!float":
			f, err := strconv.ParseFloat(node.Value, 64)
			if err != nil {
				return fmt.Errorf("line %d: bad float %q", node.Line, node.Value)
			}
			*v = Number(f)
		default:
			*v = String(node.Value)
		}
	case yaml.SequenceNode:
		items := make([]Value, 0, len(node.Content))
		for _, child := range node.Content {
			var item Value
			if err := item.UnmarshalYAML(child); err != nil {
				return err
			}
			items = append(items, item)
		}
		*v = Value{Kind: KindList, List: items}
	case yaml.MappingNode:
		m := make(map[string]Value, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			var item Value
			if err := item.UnmarshalYAML(node.Content[i+1]); err != nil {
				return err
			}
			m[node.Content[i].Value] = item
		}
		*v = Value{Kind: KindMap, Map: m}
	default:
		return fmt.Errorf("line %d: unsupported yaml node kind %d", node.Line, node.Kind)
	}
	return nil
}

// MarshalJSON implements json.Marshaler
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindString:
		return json.Marshal(v.Str)
	case KindNumber:
		if math.IsNaN(v.Num) || math.IsInf(v.Num, 0) {
			return []byte("0"), nil
		}
		if isIntegral(v.Num) {
			return []byte(strconv.FormatInt(int64(v.Num), 10)), nil
		}
		return []byte(strconv.FormatFloat(v.Num, 'g', -1, 64)), nil
	case KindBool:
		return []byte(strconv.FormatBool(v.Bool)), nil
	case KindList:
		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, item := range v.List {
			if i > 0 {
				buf.WriteByte(',')
			}
			b, err := item.MarshalJSON()
			if err != nil {
				return nil, err
			}
			buf.Write(b)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil
	case KindMap:
		var buf bytes.Buffer
		buf.WriteByte('{')
		for i, k := range sortedKeys(v.Map) {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return nil, err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			vb, err := v.Map[k].MarshalJSON()
			if err != nil {
				return nil, err
			}
			buf.Write(vb)
		}
		buf.WriteByte('}')
		return buf.Bytes(), nil
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON implements json.Unmarshaler
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	*v = fromJSONValue(raw)
	return nil
}

func fromJSONValue(x interface{}) Value {
	switch raw := x.(type) {
	case json.Number:
		if n, err := strconv.ParseInt(raw.String(), 10, 64); err == nil {
			return Number(float64(n))
		}
		if f, err := raw.Float64(); err == nil {
			return Number(f)
		}
		return String(raw.String())
	case []interface{}:
		items := make([]Value, 0, len(raw))
		for _, item := range raw {
			items = append(items, fromJSONValue(item))
		}
		return Value{Kind: KindList, List: items}
	case map[string]interface{}:
		m := make(map[string]Value, len(raw))
		for k, item := range raw {
			m[k] = fromJSONValue(item)
		}
		return Value{Kind: KindMap, Map: m}
	default:
		return FromInterface(x)
	}
}

func sortedKeys(m map[string]Value) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Config is the heterogeneous configuration map carried by components,
// boundaries, and spec metadata
type Config map[string]Value

// Has reports whether the key is present
func (c Config) Has(key string) bool {
	_, ok := c[key]
	return ok
}

// Get returns the raw value for a key
func (c Config) Get(key string) (Value, bool) {
	v, ok := c[key]
	return v, ok
}

// Str returns a string value. Numbers are not coerced.
func (c Config) Str(key string) (string, bool) {
	v, ok := c[key]
	if !ok || v.Kind != KindString {
		return "", false
	}
	return v.Str, true
}

// StrOr returns a string value or the default
func (c Config) StrOr(key, def string) string {
	if s, ok := c.Str(key); ok {
		return s
	}
	return def
}

// Float returns a numeric value. Numeric strings are parsed, which keeps
// LLM-produced configs usable without a cleanup pass.
func (c Config) Float(key string) (float64, bool) {
	v, ok := c[key]
	if !ok {
		return 0, false
	}
	switch v.Kind {
	case KindNumber:
		return v.Num, true
	case KindString:
		f, err := strconv.ParseFloat(v.Str, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// FloatOr returns a numeric value or the default
func (c Config) FloatOr(key string, def float64) float64 {
	if f, ok := c.Float(key); ok {
		return f
	}
	return def
}

// Int returns an integer value
func (c Config) Int(key string) (int, bool) {
	f, ok := c.Float(key)
	if !ok {
		return 0, false
	}
	return int(f), true
}

// IntOr returns an integer value or the default
func (c Config) IntOr(key string, def int) int {
	if n, ok := c.Int(key); ok {
		return n
	}
	return def
}

// Flag returns a boolean value. The strings "true" and "false" count.
func (c Config) Flag(key string) (bool, bool) {
	v, ok := c[key]
	if !ok {
		return false, false
	}
	switch v.Kind {
	case KindBool:
		return v.Bool, true
	case KindString:
		b, err := strconv.ParseBool(v.Str)
		if err != nil {
			return false, false
		}
		return b, true
	}
	return false, false
}

// FlagOr returns a boolean value or the default
func (c Config) FlagOr(key string, def bool) bool {
	if b, ok := c.Flag(key); ok {
		return b
	}
	return def
}

// Set stores a value, allocating the map on first use
func (c *Config) Set(key string, v Value) {
	if *c == nil {
		*c = make(Config)
	}
	(*c)[key] = v
}

// Keys returns the sorted key list
func (c Config) Keys() []string {
	return sortedKeys(c)
}

// Clone returns a deep copy
func (c Config) Clone() Config {
	if c == nil {
		return nil
	}
	out := make(Config, len(c))
	for k, v := range c {
		out[k] = v.Clone()
	}
	return out
}

// Equal reports deep equality of two config maps
func (c Config) Equal(o Config) bool {
	if len(c) != len(o) {
		return false
	}
	for k, v := range c {
		other, ok := o[k]
		if !ok || !v.Equal(other) {
			return false
		}
	}
	return true
}

// Interface returns the plain Go representation
func (c Config) Interface() map[string]interface{} {
	if c == nil {
		return nil
	}
	out := make(map[string]interface{}, len(c))
	for k, v := range c {
		out[k] = v.Interface()
	}
	return out
}
