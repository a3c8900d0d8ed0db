package search

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/simple"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/mapping"
)

// buildIndexMapping creates the Bleve index mapping for restaurant documents.
//
// Names use English stemming and are the primary target. Cuisine and
// neighborhood are searchable text as well as keyword slugs for exact filtering.
func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = en.AnalyzerName

	docMapping := bleve.NewDocumentMapping()

	// --- Text fields (full-text searchable) ---

	nameFieldMapping := bleve.NewTextFieldMapping()
	nameFieldMapping.Analyzer = en.AnalyzerName
	nameFieldMapping.Store = true
	nameFieldMapping.IncludeTermVectors = true // For highlighting
	docMapping.AddFieldMappingsAt("name", nameFieldMapping)

	cuisineFieldMapping := bleve.NewTextFieldMapping()
	cuisineFieldMapping.Analyzer = en.AnalyzerName
	cuisineFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("cuisine_type", cuisineFieldMapping)

	neighborhoodFieldMapping := bleve.NewTextFieldMapping()
	neighborhoodFieldMapping.Analyzer = en.AnalyzerName
	neighborhoodFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("neighborhood", neighborhoodFieldMapping)

	// Street addresses have no useful stems
	addressFieldMapping := bleve.NewTextFieldMapping()
	addressFieldMapping.Analyzer = simple.Name
	addressFieldMapping.Store = false
	docMapping.AddFieldMappingsAt("address", addressFieldMapping)

	// --- Keyword fields (exact match, facetable) ---

	idFieldMapping := bleve.NewTextFieldMapping()
	idFieldMapping.Analyzer = keyword.Name
	docMapping.AddFieldMappingsAt("id", idFieldMapping)

	cuisineSlugFieldMapping := bleve.NewTextFieldMapping()
	cuisineSlugFieldMapping.Analyzer = keyword.Name
	cuisineSlugFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("cuisine_slug", cuisineSlugFieldMapping)

	neighborhoodSlugFieldMapping := bleve.NewTextFieldMapping()
	neighborhoodSlugFieldMapping.Analyzer = keyword.Name
	neighborhoodSlugFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("neighborhood_slug", neighborhoodSlugFieldMapping)

	// --- Numeric fields (sorting) ---

	updatedAtFieldMapping := bleve.NewNumericFieldMapping()
	updatedAtFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("updated_at", updatedAtFieldMapping)

	indexMapping.AddDocumentMapping("_default", docMapping)

	return indexMapping
}
