package output

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// jsonWriter emits one JSON document per Write: indented when pretty,
// newline-delimited otherwise.
type jsonWriter struct {
	w      io.Writer
	pretty bool
}

func (j *jsonWriter) Write(data any) error {
	var (
		out []byte
		err error
	)
	if j.pretty {
		out, err = json.MarshalIndent(data, "", "  ")
	} else {
		out, err = json.Marshal(data)
	}
	if err != nil {
		return err
	}
	out = append(out, '\n')
	_, err = j.w.Write(out)
	return err
}

func (j *jsonWriter) Flush() error { return nil }

// yamlWriter streams documents through one YAML encoder, separating
// them with document markers.
type yamlWriter struct {
	w   io.Writer
	enc *yaml.Encoder
}

func (y *yamlWriter) Write(data any) error {
	if y.enc == nil {
		y.enc = yaml.NewEncoder(y.w)
		y.enc.SetIndent(2)
	}
	return y.enc.Encode(data)
}

func (y *yamlWriter) Flush() error {
	if y.enc == nil {
		return nil
	}
	return y.enc.Close()
}

// rawWriter prints payloads verbatim. Strings and byte slices pass
// through untouched; anything else falls back to fmt formatting.
type rawWriter struct {
	w io.Writer
}

func (r *rawWriter) Write(data any) error {
	var err error
	switch v := data.(type) {
	case string:
		_, err = io.WriteString(r.w, v)
		if err == nil && (len(v) == 0 || v[len(v)-1] != '\n') {
			_, err = io.WriteString(r.w, "\n")
		}
	case []byte:
		_, err = r.w.Write(v)
		if err == nil && (len(v) == 0 || v[len(v)-1] != '\n') {
			_, err = io.WriteString(r.w, "\n")
		}
	default:
		_, err = fmt.Fprintln(r.w, v)
	}
	return err
}

func (r *rawWriter) Flush() error { return nil }
