package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
)

// Field names of the fixed document schema.
const (
	FieldURL         = "url"
	FieldTitle       = "title"
	FieldBody        = "body"
	FieldDescription = "description"
	FieldParsed      = "parsed"
)

// schemaVersion is bumped whenever NewIndexMapping changes shape.
const schemaVersion = "zeno-schema-v1"

// schemaKey is the internal key holding the schema fingerprint.
var schemaKey = []byte("_zeno_schema")

// NewIndexMapping builds the fixed five-field schema. url and title are
// stored and returned with hits; body and description only feed matching;
// parsed is an indexed date. Dynamic fields are rejected.
func NewIndexMapping() (*mapping.IndexMappingImpl, error) {
	stored := func() *mapping.FieldMapping {
		fm := mapping.NewTextFieldMapping()
		fm.Analyzer = standard.Name
		fm.Store = true
		fm.IncludeInAll = true
		return fm
	}
	unstored := func() *mapping.FieldMapping {
		fm := mapping.NewTextFieldMapping()
		fm.Analyzer = standard.Name
		fm.Store = false
		fm.IncludeInAll = true
		fm.IncludeTermVectors = false
		return fm
	}

	parsed := mapping.NewDateTimeFieldMapping()
	parsed.Store = false
	parsed.IncludeInAll = false

	dm := mapping.NewDocumentStaticMapping()
	dm.AddFieldMappingsAt(FieldURL, stored())
	dm.AddFieldMappingsAt(FieldTitle, stored())
	dm.AddFieldMappingsAt(FieldBody, unstored())
	dm.AddFieldMappingsAt(FieldDescription, unstored())
	dm.AddFieldMappingsAt(FieldParsed, parsed)

	im := bleve.NewIndexMapping()
	im.DefaultMapping = dm
	im.DefaultAnalyzer = standard.Name
	im.IndexDynamic = false
	im.StoreDynamic = false
	im.DocValuesDynamic = false

	if err := im.Validate(); err != nil {
		return nil, fmt.Errorf("invalid index mapping: %w", err)
	}
	return im, nil
}

// SchemaFingerprint identifies a mapping. Two indexes with the same
// fingerprint accept the same documents.
func SchemaFingerprint(im mapping.IndexMapping) (string, error) {
	raw, err := json.Marshal(im)
	if err != nil {
		return "", fmt.Errorf("failed to encode index mapping: %w", err)
	}
	sum := sha256.Sum256(raw)
	return schemaVersion + ":" + hex.EncodeToString(sum[:]), nil
}
