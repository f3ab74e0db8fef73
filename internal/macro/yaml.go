package macro

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// yamlAction extends ActionRecord with shorthand for tap series: the action
// is emitted Repeat times with a Sleep of Every seconds between repetitions.
type yamlAction struct {
	ActionRecord `yaml:",inline"`
	Repeat       int     `yaml:"repeat,omitempty"`
	Every        float64 `yaml:"every,omitempty"`
}

type yamlMacro struct {
	Name        string       `yaml:"name"`
	Description string       `yaml:"description,omitempty"`
	Loop        *bool        `yaml:"loop,omitempty"`
	LoopCount   int          `yaml:"loop_count,omitempty"`
	Actions     []yamlAction `yaml:"actions"`
}

// DecodeYAML parses one or more YAML documents, each describing a macro.
func DecodeYAML(data []byte) ([]Macro, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var out []Macro
	for {
		var ym yamlMacro
		err := dec.Decode(&ym)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode macro yaml: %w", err)
		}
		m, err := ym.expand()
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func (ym yamlMacro) expand() (Macro, error) {
	r := Record{
		Name:        ym.Name,
		Description: ym.Description,
		Loop:        ym.Loop,
		LoopCount:   ym.LoopCount,
	}
	for i, a := range ym.Actions {
		if a.Repeat < 0 || a.Every < 0 {
			return Macro{}, &MalformedError{Name: ym.Name, Step: i + 1, Reason: "negative repeat or every"}
		}
		n := max(a.Repeat, 1)
		for j := 0; j < n; j++ {
			if j > 0 && a.Every > 0 {
				r.Actions = append(r.Actions, ActionRecord{Type: KindSleep, Delay: a.Every})
			}
			r.Actions = append(r.Actions, a.ActionRecord)
		}
	}
	return FromRecord(r)
}

// EncodeYAML renders m in its stored shape.
func EncodeYAML(m Macro) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(ToRecord(m)); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
