package format

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type DataFormat string

const (
	FORMAT_LIST DataFormat = "list"
	FORMAT_JSON DataFormat = "json"
	FORMAT_YAML DataFormat = "yaml"
)

func (df DataFormat) String() string {
	return string(df)
}

func (df *DataFormat) Set(v string) error {
	switch DataFormat(v) {
	case FORMAT_LIST, FORMAT_JSON, FORMAT_YAML:
		*df = DataFormat(v)
		return nil
	default:
		return fmt.Errorf("must be one of %v", []DataFormat{
			FORMAT_LIST, FORMAT_JSON, FORMAT_YAML,
		})
	}
}

func (df DataFormat) Type() string {
	return "DataFormat"
}

// Lister is implemented by values with a human readable, line oriented form.
type Lister interface {
	List(w io.Writer) error
}

// Marshal encodes data as JSON or YAML. The list format has no byte encoding;
// use Write for it.
func Marshal(data any, outFormat DataFormat) ([]byte, error) {
	switch outFormat {
	case FORMAT_JSON:
		bytes, err := json.MarshalIndent(data, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to marshal data into JSON: %w", err)
		}
		return bytes, nil
	case FORMAT_YAML:
		bytes, err := yaml.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal data into YAML: %w", err)
		}
		return bytes, nil
	case FORMAT_LIST:
		return nil, fmt.Errorf("this data format cannot be marshaled")
	default:
		return nil, fmt.Errorf("unknown data format: %s", outFormat)
	}
}

func Unmarshal(data []byte, v any, inFormat DataFormat) error {
	switch inFormat {
	case FORMAT_JSON:
		if err := json.Unmarshal(data, v); err != nil {
			return fmt.Errorf("failed to unmarshal data into JSON: %w", err)
		}
	case FORMAT_YAML:
		if err := yaml.Unmarshal(data, v); err != nil {
			return fmt.Errorf("failed to unmarshal data into YAML: %w", err)
		}
	case FORMAT_LIST:
		return fmt.Errorf("this data format cannot be unmarshaled")
	default:
		return fmt.Errorf("unknown data format: %s", inFormat)
	}
	return nil
}

// Write prints data to w in outFormat. The list format requires data to
// implement Lister.
func Write(w io.Writer, data any, outFormat DataFormat) error {
	if outFormat == FORMAT_LIST {
		l, ok := data.(Lister)
		if !ok {
			return fmt.Errorf("%T cannot be printed as a list", data)
		}
		return l.List(w)
	}
	b, err := Marshal(data, outFormat)
	if err != nil {
		return err
	}
	if len(b) > 0 && b[len(b)-1] != '\n' {
		b = append(b, '\n')
	}
	_, err = w.Write(b)
	return err
}

// DataFormatFromFileExt guesses the format from the extension of path,
// falling back to defaultFmt.
func DataFormatFromFileExt(path string, defaultFmt DataFormat) DataFormat {
	switch filepath.Ext(path) {
	case ".json", ".JSON":
		return FORMAT_JSON
	case ".yaml", ".yml", ".YAML", ".YML":
		return FORMAT_YAML
	}
	return defaultFmt
}
