package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/Velocidex/ordereddict"
	"github.com/fatih/color"
	"gopkg.in/yaml.v2"

	"github.com/wanglei-coder/pev/plugins"
)

// RegisterBuiltins adds the text, json and yaml formatters to r.
func RegisterBuiltins(r *plugins.Registry, noColor bool) error {
	for _, p := range []plugins.Plugin{&Text{NoColor: noColor}, JSON{}, YAML{}} {
		if err := r.Register(p); err != nil {
			return err
		}
	}
	return nil
}

type JSON struct{}

func (JSON) Name() string { return "json" }

func (JSON) Format(w io.Writer, doc *ordereddict.Dict) error {
	data, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}

type YAML struct{}

func (YAML) Name() string { return "yaml" }

func (YAML) Format(w io.Writer, doc *ordereddict.Dict) error {
	data, err := yaml.Marshal(toMapSlice(doc))
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// toMapSlice keeps the key order of nested dicts, which yaml.v2 only
// preserves for MapSlice values.
func toMapSlice(v interface{}) interface{} {
	switch v := v.(type) {
	case *ordereddict.Dict:
		ms := make(yaml.MapSlice, 0, len(v.Keys()))
		for _, k := range v.Keys() {
			item, _ := v.Get(k)
			ms = append(ms, yaml.MapItem{Key: k, Value: toMapSlice(item)})
		}
		return ms
	case []*ordereddict.Dict:
		items := make([]interface{}, len(v))
		for i, d := range v {
			items[i] = toMapSlice(d)
		}
		return items
	}
	return v
}

// Text is the human readable formatter. Headings are coloured unless
// NoColor is set or the output is not a terminal.
type Text struct {
	NoColor bool
}

func (*Text) Name() string { return "text" }

func (t *Text) Format(w io.Writer, doc *ordereddict.Dict) error {
	heading := color.New(color.FgYellow, color.Bold)
	if t.NoColor {
		heading.DisableColor()
	}
	return t.writeDict(w, heading, doc, 0)
}

func (t *Text) writeDict(w io.Writer, heading *color.Color, d *ordereddict.Dict, depth int) error {
	indent := strings.Repeat("    ", depth)
	for _, k := range d.Keys() {
		v, _ := d.Get(k)
		switch v := v.(type) {
		case *ordereddict.Dict:
			if _, err := heading.Fprintf(w, "%s%s\n", indent, k); err != nil {
				return err
			}
			if err := t.writeDict(w, heading, v, depth+1); err != nil {
				return err
			}
		case []*ordereddict.Dict:
			if _, err := heading.Fprintf(w, "%s%s\n", indent, k); err != nil {
				return err
			}
			for i, item := range v {
				if i > 0 {
					if _, err := fmt.Fprintln(w); err != nil {
						return err
					}
				}
				if err := t.writeDict(w, heading, item, depth+1); err != nil {
					return err
				}
			}
		case []string:
			if _, err := fmt.Fprintf(w, "%s%-34s%s\n", indent, k+":", strings.Join(v, ", ")); err != nil {
				return err
			}
		default:
			if _, err := fmt.Fprintf(w, "%s%-34s%v\n", indent, k+":", v); err != nil {
				return err
			}
		}
	}
	return nil
}
