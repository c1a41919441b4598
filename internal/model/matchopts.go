package model

import (
	"bytes"
	"encoding/json"
	"errors"
)

// MatchPair is one left->right pairing of a match question.
type MatchPair struct {
	Left  string
	Right string
}

// MatchPairs is the internal grading key of a match question. It serializes
// to a plain JSON object but keeps pair order, so the stored payload can be
// converted back to the API's left/right lists without reshuffling.
type MatchPairs []MatchPair

func (p MatchPairs) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, pair := range p {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(pair.Left)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(pair.Right)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (p *MatchPairs) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return errors.New("match payload must be a JSON object")
	}

	pairs := MatchPairs{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return errors.New("match payload has a non-string key")
		}

		var value any
		if err := dec.Decode(&value); err != nil {
			return err
		}
		right, _ := value.(string)
		pairs = append(pairs, MatchPair{Left: key, Right: right})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	*p = pairs
	return nil
}

// Map drops the ordering, for membership lookups while grading.
func (p MatchPairs) Map() map[string]string {
	m := make(map[string]string, len(p))
	for _, pair := range p {
		m[pair.Left] = pair.Right
	}
	return m
}

// MatchOptions is the API representation of match question options.
type MatchOptions struct {
	Left  []string `json:"left"`
	Right []string `json:"right"`
}

// MatchOptionsToInternal converts the {left:[],right:[]} payload into the
// persisted ordered left->right object. Payloads already in internal form
// pass through untouched.
func MatchOptionsToInternal(raw json.RawMessage) (json.RawMessage, error) {
	if len(raw) == 0 {
		return raw, nil
	}

	var ext MatchOptions
	if err := json.Unmarshal(raw, &ext); err != nil || ext.Left == nil {
		var pairs MatchPairs
		if err := json.Unmarshal(raw, &pairs); err != nil {
			return nil, err
		}
		return raw, nil
	}

	pairs := make(MatchPairs, 0, len(ext.Left))
	for i, left := range ext.Left {
		right := ""
		if i < len(ext.Right) {
			right = ext.Right[i]
		}
		pairs = append(pairs, MatchPair{Left: left, Right: right})
	}
	return json.Marshal(pairs)
}

// MatchOptionsToExternal converts the persisted ordered object back into
// the {left:[],right:[]} form served to clients.
func MatchOptionsToExternal(raw json.RawMessage) (json.RawMessage, error) {
	if len(raw) == 0 {
		return raw, nil
	}

	var ext MatchOptions
	if err := json.Unmarshal(raw, &ext); err == nil && ext.Left != nil {
		return raw, nil
	}

	var pairs MatchPairs
	if err := json.Unmarshal(raw, &pairs); err != nil {
		return nil, err
	}

	out := MatchOptions{
		Left:  make([]string, 0, len(pairs)),
		Right: make([]string, 0, len(pairs)),
	}
	for _, pair := range pairs {
		out.Left = append(out.Left, pair.Left)
		out.Right = append(out.Right, pair.Right)
	}
	return json.Marshal(out)
}
