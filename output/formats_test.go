package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/Velocidex/ordereddict"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v2"

	pe "github.com/wanglei-coder/pev"
	"github.com/wanglei-coder/pev/plugins"
)

func sampleDoc() *ordereddict.Dict {
	return ordereddict.NewDict().
		Set("Header", ordereddict.NewDict().
			Set("Magic", "0x10b").
			Set("Flags", []string{"NX_COMPAT", "DYNAMIC_BASE"})).
		Set("Sections", []*ordereddict.Dict{
			ordereddict.NewDict().Set("Name", ".text"),
			ordereddict.NewDict().Set("Name", ".data"),
		}).
		Set("Count", 2)
}

func TestRegisterBuiltins(t *testing.T) {
	r := plugins.NewRegistry()
	require.NoError(t, RegisterBuiltins(r, true))
	assert.Equal(t, []string{"json", "text", "yaml"}, r.Names())

	p, err := r.Lookup("text")
	require.NoError(t, err)
	text, ok := p.(*Text)
	require.True(t, ok)
	assert.True(t, text.NoColor)

	assert.Error(t, RegisterBuiltins(r, true), "builtins are already registered")
}

func TestJSON_Format(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, JSON{}.Format(&buf, sampleDoc()))

	out := buf.String()
	assert.True(t, strings.HasSuffix(out, "}\n"))
	assert.Less(t, strings.Index(out, `"Header"`), strings.Index(out, `"Sections"`))
	assert.Less(t, strings.Index(out, `"Sections"`), strings.Index(out, `"Count"`))

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, float64(2), decoded["Count"])
	header := decoded["Header"].(map[string]interface{})
	assert.Equal(t, []interface{}{"NX_COMPAT", "DYNAMIC_BASE"}, header["Flags"])
}

func TestYAML_Format(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, YAML{}.Format(&buf, sampleDoc()))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "Header:\n  Magic: "))
	assert.Contains(t, out, "  Flags:\n  - NX_COMPAT\n  - DYNAMIC_BASE\n")
	assert.Contains(t, out, "Sections:\n- Name: .text\n- Name: .data\n")
	assert.True(t, strings.HasSuffix(out, "Count: 2\n"))

	var decoded yaml.MapSlice
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 3)
	assert.Equal(t, "Header", decoded[0].Key)
	header, ok := decoded[0].Value.(yaml.MapSlice)
	require.True(t, ok)
	assert.Equal(t, yaml.MapItem{Key: "Magic", Value: "0x10b"}, header[0])
}

func TestText_Format(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&Text{NoColor: true}).Format(&buf, sampleDoc()))

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 8)
	assert.Equal(t, "Header", lines[0])
	assert.Equal(t, "    Magic:                            0x10b", lines[1])
	assert.Equal(t, "    Flags:                            NX_COMPAT, DYNAMIC_BASE", lines[2])
	assert.Equal(t, "Sections", lines[3])
	assert.Equal(t, "    Name:                             .text", lines[4])
	assert.Equal(t, "", lines[5])
	assert.Equal(t, "    Name:                             .data", lines[6])
	assert.True(t, strings.HasPrefix(lines[7], "Count:"))
}

func TestFormats_Report(t *testing.T) {
	f := newTestFile(t, pe.ImageFileExecutableImage, pe.DllNXCompat)
	doc := Report(f, All)

	for _, p := range []plugins.Plugin{JSON{}, YAML{}, &Text{NoColor: true}} {
		t.Run(p.Name(), func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, p.Format(&buf, doc))
			assert.Contains(t, buf.String(), "image/png")
			assert.Contains(t, buf.String(), "NX_COMPAT")
		})
	}
}
