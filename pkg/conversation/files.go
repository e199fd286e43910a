package conversation

import (
	"bytes"
	"encoding/json"
	"sort"

	"github.com/huandu/go-clone"
	"github.com/pkg/errors"
)

// LineMap maps a 1-based line number to the text of that line.
// Line numbers are identity keys and need not be contiguous.
type LineMap map[int]string

// Line is a single numbered line of a LineMap.
type Line struct {
	Number int
	Text   string
}

// SortedLines returns the lines ascending by line number.
func (lm LineMap) SortedLines() []Line {
	ret := make([]Line, 0, len(lm))
	for n, text := range lm {
		ret = append(ret, Line{Number: n, Text: text})
	}
	sort.Slice(ret, func(i, j int) bool {
		return ret[i].Number < ret[j].Number
	})
	return ret
}

func (lm LineMap) Validate() error {
	for n := range lm {
		if n < 1 {
			return errors.Errorf("line number %d must be positive", n)
		}
	}
	return nil
}

// NamedFile is one caller-supplied file.
type NamedFile struct {
	Name  string  `json:"name" yaml:"name"`
	Lines LineMap `json:"lines" yaml:"lines"`
}

// Files is an ordered collection of files. It (un)marshals as a JSON object
// keyed by file name and keeps the key order of the document it was decoded from.
type Files []NamedFile

func (f Files) Validate() error {
	for _, nf := range f {
		if nf.Name == "" {
			return errors.New("file name must not be empty")
		}
		if err := nf.Lines.Validate(); err != nil {
			return errors.Wrapf(err, "file %s", nf.Name)
		}
	}
	return nil
}

// Map returns the files keyed by name.
func (f Files) Map() map[string]LineMap {
	ret := make(map[string]LineMap, len(f))
	for _, nf := range f {
		ret[nf.Name] = nf.Lines
	}
	return ret
}

// Clone deep-copies the files so callers can hand them out without aliasing.
func (f Files) Clone() Files {
	if f == nil {
		return nil
	}
	return clone.Clone(f).(Files)
}

func (f Files) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, nf := range f {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(nf.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		lines := nf.Lines
		if lines == nil {
			lines = LineMap{}
		}
		v, err := json.Marshal(lines)
		if err != nil {
			return nil, err
		}
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (f *Files) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*f = nil
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return errors.New("files must be a JSON object keyed by file name")
	}

	ret := Files{}
	index := map[string]int{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return errors.Errorf("unexpected files key %v", tok)
		}
		var lines LineMap
		if err := dec.Decode(&lines); err != nil {
			return errors.Wrapf(err, "file %s", name)
		}
		if lines == nil {
			lines = LineMap{}
		}
		if i, seen := index[name]; seen {
			ret[i].Lines = lines
			continue
		}
		index[name] = len(ret)
		ret = append(ret, NamedFile{Name: name, Lines: lines})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	*f = ret
	return nil
}
