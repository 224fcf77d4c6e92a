package codec

import (
	"errors"
	"fmt"

	"github.com/danielpatrickdp/case-knowledge/internal/compose"
	"google.golang.org/protobuf/types/known/structpb"
)

// #region names
const (
	// ServiceName is the fully-qualified gRPC service name, also used for health checks.
	ServiceName = "casekb.v1.Generator"

	generateMethod = "/" + ServiceName + "/Generate"
)

// #endregion names

// #region messages
// Wire messages are structpb.Struct values with these fields:
//
//	request:  query (string), article_ids (list of string)
//	response: answer (string), confidence (number), citation_ids (list of string)
//
// Only IDs cross the wire. Both sides resolve them against their own copy of the corpus.

var errMalformed = errors.New("malformed message")

func encodeRequest(query string, articleIDs []string) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"query":       query,
		"article_ids": stringList(articleIDs),
	})
}

func decodeRequest(s *structpb.Struct) (query string, articleIDs []string, err error) {
	query, err = stringField(s, "query")
	if err != nil {
		return "", nil, err
	}
	articleIDs, err = stringListField(s, "article_ids")
	if err != nil {
		return "", nil, err
	}
	return query, articleIDs, nil
}

func encodeResponse(resp compose.ComposedResponse) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"answer":       resp.Answer,
		"confidence":   resp.Confidence,
		"citation_ids": stringList(resp.CitationIDs()),
	})
}

func decodeResponse(s *structpb.Struct) (answer string, confidence float64, citationIDs []string, err error) {
	answer, err = stringField(s, "answer")
	if err != nil {
		return "", 0, nil, err
	}
	v, ok := s.GetFields()["confidence"]
	if !ok {
		return "", 0, nil, fmt.Errorf("%w: missing confidence", errMalformed)
	}
	nv, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return "", 0, nil, fmt.Errorf("%w: confidence is not a number", errMalformed)
	}
	citationIDs, err = stringListField(s, "citation_ids")
	if err != nil {
		return "", 0, nil, err
	}
	return answer, nv.NumberValue, citationIDs, nil
}

// #endregion messages

// #region helpers
func stringList(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}

func stringField(s *structpb.Struct, name string) (string, error) {
	v, ok := s.GetFields()[name]
	if !ok {
		return "", fmt.Errorf("%w: missing %s", errMalformed, name)
	}
	sv, ok := v.GetKind().(*structpb.Value_StringValue)
	if !ok {
		return "", fmt.Errorf("%w: %s is not a string", errMalformed, name)
	}
	return sv.StringValue, nil
}

// stringListField treats a missing field as an empty list.
func stringListField(s *structpb.Struct, name string) ([]string, error) {
	v, ok := s.GetFields()[name]
	if !ok {
		return nil, nil
	}
	lv, ok := v.GetKind().(*structpb.Value_ListValue)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a list", errMalformed, name)
	}
	out := make([]string, 0, len(lv.ListValue.GetValues()))
	for i, item := range lv.ListValue.GetValues() {
		sv, ok := item.GetKind().(*structpb.Value_StringValue)
		if !ok {
			return nil, fmt.Errorf("%w: %s[%d] is not a string", errMalformed, name, i)
		}
		out = append(out, sv.StringValue)
	}
	return out, nil
}

// #endregion helpers
