package trust

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// policyDocument is an IAM trust policy. Statement, Action and principal
// values may each be a single value or a list.
type policyDocument struct {
	Version   string      `json:"Version"`
	Statement []statement `json:"-"`
}

type statement struct {
	Sid       string                     `json:"Sid"`
	Effect    string                     `json:"Effect"`
	Principal principal                  `json:"Principal"`
	Action    stringList                 `json:"Action"`
	Condition map[string]map[string]any `json:"Condition"`
}

func (d *policyDocument) UnmarshalJSON(data []byte) error {
	var raw struct {
		Version   string          `json:"Version"`
		Statement json.RawMessage `json:"Statement"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	d.Version = raw.Version

	trimmed := strings.TrimSpace(string(raw.Statement))
	switch {
	case trimmed == "" || trimmed == "null":
		return nil
	case trimmed[0] == '{':
		var s statement
		if err := json.Unmarshal(raw.Statement, &s); err != nil {
			return err
		}
		d.Statement = []statement{s}
		return nil
	}
	return json.Unmarshal(raw.Statement, &d.Statement)
}

// stringList accepts "x" or ["x", "y"].
type stringList []string

func (l *stringList) UnmarshalJSON(data []byte) error {
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		*l = stringList{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*l = many
	return nil
}

// principal accepts "*" or {"AWS": ..., "Service": ...}.
type principal struct {
	Wildcard bool
	AWS      stringList
	Service  stringList
}

func (p *principal) UnmarshalJSON(data []byte) error {
	var star string
	if err := json.Unmarshal(data, &star); err == nil {
		p.Wildcard = star == "*"
		return nil
	}
	var m struct {
		AWS     stringList `json:"AWS"`
		Service stringList `json:"Service"`
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	p.AWS = m.AWS
	p.Service = m.Service
	for _, a := range m.AWS {
		if a == "*" {
			p.Wildcard = true
		}
	}
	return nil
}

// parsePolicy decodes a trust policy as returned by IAM GetRole, which
// URL-encodes the JSON document.
func parsePolicy(encoded string) (*policyDocument, error) {
	doc := encoded
	if decoded, err := url.QueryUnescape(encoded); err == nil {
		doc = decoded
	}
	var p policyDocument
	if err := json.Unmarshal([]byte(doc), &p); err != nil {
		return nil, fmt.Errorf("parse trust policy: %w", err)
	}
	return &p, nil
}

func (s statement) allowsAssumeRole() bool {
	if !strings.EqualFold(s.Effect, "Allow") {
		return false
	}
	for _, a := range s.Action {
		switch strings.ToLower(a) {
		case "sts:assumerole", "sts:*", "*":
			return true
		}
	}
	return false
}

// externalIDs returns the values the statement requires for sts:ExternalId
// under StringEquals or StringLike, and whether such a condition exists.
func (s statement) externalIDs() ([]string, bool) {
	var values []string
	found := false
	for op, keys := range s.Condition {
		switch strings.ToLower(op) {
		case "stringequals", "stringlike":
		default:
			continue
		}
		for key, v := range keys {
			if !strings.EqualFold(key, "sts:ExternalId") {
				continue
			}
			found = true
			switch v := v.(type) {
			case string:
				values = append(values, v)
			case []any:
				for _, item := range v {
					if s, ok := item.(string); ok {
						values = append(values, s)
					}
				}
			}
		}
	}
	return values, found
}
