package coderec

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/omertheroot/correlf/internal/apperr"
)

// rawDocument mirrors the native classifier's JSON response shape.
// Each range_results element is itself a 3-tuple: [{start,end},
// length, tag]; json.RawMessage defers decoding each slot so the
// heterogeneous tuple can be unpacked by hand.
type rawDocument struct {
	File         string            `json:"file"`
	RangeResults []json.RawMessage `json:"range_results"`
}

type spanObj struct {
	Start uint64 `json:"start"`
	End   uint64 `json:"end"`
}

// Bridge invokes the native coderec classifier (or the builtin
// fallback) to produce code regions for files.
type Bridge struct {
	enabled  bool
	location string
}

// NewBridge constructs a Bridge. When enabled is false, every Classify
// call yields an empty region list, per spec.md §4.5.
func NewBridge(enabled bool, location string) *Bridge {
	return &Bridge{enabled: enabled, location: location}
}

// Classify runs the classifier over a single file path.
func (b *Bridge) Classify(ctx context.Context, path string) ([]Region, error) {
	if !b.enabled {
		return nil, nil
	}
	if b.location == BuiltinEntropyLocation || b.location == "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, apperr.Wrap(apperr.IoFailure, "reading file for builtin classifier", err)
		}
		return ClassifyEntropy(data), nil
	}

	out, err := runNative(ctx, b.location, []string{path})
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, apperr.New(apperr.ExternalToolFailure, fmt.Sprintf("native classifier returned empty output for %s", path))
	}

	docs, err := splitDocuments(out)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, apperr.New(apperr.ExternalToolFailure, fmt.Sprintf("native classifier returned no documents for %s", path))
	}
	return docs[0].regions, nil
}

// ClassifyBatch runs the classifier over paths, submitting at most
// BatchSize paths per native invocation, and returns a map to each
// file's region list. Native results are keyed by the "file" field of
// each returned document; when the classifier is disabled or builtin,
// results are keyed by the input path itself.
func (b *Bridge) ClassifyBatch(ctx context.Context, paths []string) (map[string][]Region, error) {
	results := make(map[string][]Region, len(paths))
	if !b.enabled {
		for _, p := range paths {
			results[p] = nil
		}
		return results, nil
	}
	if b.location == BuiltinEntropyLocation || b.location == "" {
		for _, p := range paths {
			regions, err := b.Classify(ctx, p)
			if err != nil {
				return nil, err
			}
			results[p] = regions
		}
		return results, nil
	}

	for start := 0; start < len(paths); start += BatchSize {
		end := start + BatchSize
		if end > len(paths) {
			end = len(paths)
		}
		batch := paths[start:end]

		out, err := runNative(ctx, b.location, batch)
		if err != nil {
			return nil, err
		}
		if len(out) == 0 {
			return nil, apperr.New(apperr.ExternalToolFailure, "native classifier returned empty output for batch")
		}

		docs, err := splitDocuments(out)
		if err != nil {
			return nil, err
		}
		for _, d := range docs {
			results[d.file] = d.regions
		}
	}
	return results, nil
}

func runNative(ctx context.Context, location string, paths []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, location, paths...)
	out, err := cmd.Output()
	if err != nil {
		return nil, apperr.Wrap(apperr.ExternalToolFailure, fmt.Sprintf("coderec classifier at %s", location), err)
	}
	return out, nil
}

type classifiedDocument struct {
	file    string
	regions []Region
}

// splitDocuments splits a concatenated stream of JSON objects on the
// "}{" boundary (spec.md §4.5: "the returned stream may be a
// concatenation of JSON objects (no separator)") and decodes each one
// independently.
func splitDocuments(stream []byte) ([]classifiedDocument, error) {
	parts := strings.Split(string(stream), "}{")
	var docs []classifiedDocument

	for i, part := range parts {
		s := part
		if i != 0 {
			s = "{" + s
		}
		if i != len(parts)-1 {
			s = s + "}"
		}

		doc, err := decodeDocument([]byte(s))
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func decodeDocument(raw []byte) (classifiedDocument, error) {
	var rd rawDocument
	if err := json.Unmarshal(raw, &rd); err != nil {
		return classifiedDocument{}, apperr.Wrap(apperr.InvalidEncoding, "decoding coderec JSON document", err)
	}
	if rd.RangeResults == nil {
		return classifiedDocument{}, apperr.New(apperr.InvalidEncoding, "coderec JSON document missing range_results")
	}

	regions := make([]Region, 0, len(rd.RangeResults))
	for _, raw := range rd.RangeResults {
		var tuple []json.RawMessage
		if err := json.Unmarshal(raw, &tuple); err != nil || len(tuple) != 3 {
			return classifiedDocument{}, apperr.New(apperr.InvalidEncoding, "coderec range_results element is not a 3-tuple")
		}

		var span spanObj
		if err := json.Unmarshal(tuple[0], &span); err != nil {
			return classifiedDocument{}, apperr.Wrap(apperr.InvalidEncoding, "decoding coderec range span", err)
		}
		var length uint64
		if err := json.Unmarshal(tuple[1], &length); err != nil {
			return classifiedDocument{}, apperr.Wrap(apperr.InvalidEncoding, "decoding coderec range length", err)
		}
		var tag string
		if err := json.Unmarshal(tuple[2], &tag); err != nil {
			return classifiedDocument{}, apperr.Wrap(apperr.InvalidEncoding, "decoding coderec range tag", err)
		}

		regions = append(regions, Region{Start: span.Start, End: span.End, Length: length, Tag: tag})
	}

	return classifiedDocument{file: rd.File, regions: regions}, nil
}
