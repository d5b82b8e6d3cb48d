package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/elastic/go-elasticsearch/v8"
)

const productIndex = "products"

// Document is the denormalized projection of a product kept in the index.
// The index is maintained only through explicit Index/BulkIndex/Delete calls;
// there is no automatic synchronization with the catalog store.
type Document struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Category    string  `json:"category"`
	Brand       string  `json:"brand"`
	ImageURL    string  `json:"image_url"`
}

type Hit struct {
	Document
	Score float64
}

type Results struct {
	Total int64
	Hits  []Hit
}

// Query is a free-text search with optional filters. Nil price bounds mean
// unbounded; an explicit zero counts as a bound.
type Query struct {
	Text     string
	Category string
	Brand    string
	MinPrice *float64
	MaxPrice *float64
	Skip     int
	Limit    int
}

type Facets struct {
	Categories []string
	Brands     []string
	MinPrice   *float64
	MaxPrice   *float64
}

type Gateway struct {
	es *elasticsearch.Client
}

func NewGateway(es *elasticsearch.Client) *Gateway {
	return &Gateway{es: es}
}

const indexMapping = `{
	"settings": {
		"analysis": {
			"analyzer": {
				"product_analyzer": {
					"type": "custom",
					"tokenizer": "standard",
					"filter": ["lowercase", "stop", "snowball"]
				}
			}
		}
	},
	"mappings": {
		"properties": {
			"id": {"type": "long"},
			"name": {
				"type": "text",
				"analyzer": "product_analyzer",
				"fields": {"keyword": {"type": "keyword"}}
			},
			"description": {"type": "text", "analyzer": "product_analyzer"},
			"price": {"type": "float"},
			"category": {"type": "keyword"},
			"brand": {"type": "keyword"},
			"image_url": {"type": "keyword"},
			"suggest": {"type": "completion"}
		}
	}
}`

// EnsureIndex creates the products index if it does not exist yet.
func (g *Gateway) EnsureIndex(ctx context.Context) error {
	res, err := g.es.Indices.Exists(
		[]string{productIndex},
		g.es.Indices.Exists.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("check index: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == 200 {
		return nil
	}
	if res.StatusCode != 404 {
		return fmt.Errorf("check index: %s", res.String())
	}

	createRes, err := g.es.Indices.Create(
		productIndex,
		g.es.Indices.Create.WithContext(ctx),
		g.es.Indices.Create.WithBody(bytes.NewReader([]byte(indexMapping))),
	)
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	defer createRes.Body.Close()

	if createRes.IsError() {
		return fmt.Errorf("create index: %s", createRes.String())
	}
	return nil
}

// Search runs a weighted multi-field match (name above brand above
// description/category) with fuzzy matching, sorted by score then price.
func (g *Gateway) Search(ctx context.Context, q Query) (*Results, error) {
	must := []map[string]any{{
		"multi_match": map[string]any{
			"query":     q.Text,
			"fields":    []string{"name^3", "description", "brand^2", "category"},
			"fuzziness": "AUTO",
		},
	}}

	var filter []map[string]any
	if q.Category != "" {
		filter = append(filter, map[string]any{"term": map[string]any{"category": q.Category}})
	}
	if q.Brand != "" {
		filter = append(filter, map[string]any{"term": map[string]any{"brand": q.Brand}})
	}
	if q.MinPrice != nil || q.MaxPrice != nil {
		priceRange := map[string]any{}
		if q.MinPrice != nil {
			priceRange["gte"] = *q.MinPrice
		}
		if q.MaxPrice != nil {
			priceRange["lte"] = *q.MaxPrice
		}
		filter = append(filter, map[string]any{"range": map[string]any{"price": priceRange}})
	}

	body := map[string]any{
		"query": map[string]any{
			"bool": map[string]any{
				"must":   must,
				"filter": filter,
			},
		},
		"from": q.Skip,
		"size": q.Limit,
		"sort": []map[string]any{
			{"_score": map[string]any{"order": "desc"}},
			{"price": map[string]any{"order": "asc"}},
		},
	}

	var parsed struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Score  float64  `json:"_score"`
				Source Document `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := g.search(ctx, body, &parsed); err != nil {
		return nil, err
	}

	results := &Results{Total: parsed.Hits.Total.Value}
	for _, h := range parsed.Hits.Hits {
		results.Hits = append(results.Hits, Hit{Document: h.Source, Score: h.Score})
	}
	return results, nil
}

// Suggest returns up to size prefix completions from the suggest field.
func (g *Gateway) Suggest(ctx context.Context, prefix string, size int) ([]string, error) {
	body := map[string]any{
		"suggest": map[string]any{
			"product-suggest": map[string]any{
				"prefix": prefix,
				"completion": map[string]any{
					"field":           "suggest",
					"size":            size,
					"skip_duplicates": true,
				},
			},
		},
	}

	var parsed struct {
		Suggest struct {
			ProductSuggest []struct {
				Options []struct {
					Text string `json:"text"`
				} `json:"options"`
			} `json:"product-suggest"`
		} `json:"suggest"`
	}
	if err := g.search(ctx, body, &parsed); err != nil {
		return nil, err
	}

	var suggestions []string
	for _, entry := range parsed.Suggest.ProductSuggest {
		for _, opt := range entry.Options {
			suggestions = append(suggestions, opt.Text)
		}
	}
	return suggestions, nil
}

// Facets aggregates distinct categories, distinct brands, and the price
// min/max in a single request.
func (g *Gateway) Facets(ctx context.Context) (*Facets, error) {
	body := map[string]any{
		"size": 0,
		"aggs": map[string]any{
			"categories":  map[string]any{"terms": map[string]any{"field": "category", "size": 20}},
			"brands":      map[string]any{"terms": map[string]any{"field": "brand", "size": 50}},
			"price_stats": map[string]any{"stats": map[string]any{"field": "price"}},
		},
	}

	var parsed struct {
		Aggregations struct {
			Categories struct {
				Buckets []struct {
					Key string `json:"key"`
				} `json:"buckets"`
			} `json:"categories"`
			Brands struct {
				Buckets []struct {
					Key string `json:"key"`
				} `json:"buckets"`
			} `json:"brands"`
			PriceStats struct {
				Min *float64 `json:"min"`
				Max *float64 `json:"max"`
			} `json:"price_stats"`
		} `json:"aggregations"`
	}
	if err := g.search(ctx, body, &parsed); err != nil {
		return nil, err
	}

	facets := &Facets{
		MinPrice: parsed.Aggregations.PriceStats.Min,
		MaxPrice: parsed.Aggregations.PriceStats.Max,
	}
	for _, b := range parsed.Aggregations.Categories.Buckets {
		facets.Categories = append(facets.Categories, b.Key)
	}
	for _, b := range parsed.Aggregations.Brands.Buckets {
		facets.Brands = append(facets.Brands, b.Key)
	}
	return facets, nil
}

// Index upserts a single document, populating the completion field from the
// document name.
func (g *Gateway) Index(ctx context.Context, doc Document) error {
	body, err := json.Marshal(indexable(doc))
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}

	res, err := g.es.Index(
		productIndex,
		bytes.NewReader(body),
		g.es.Index.WithContext(ctx),
		g.es.Index.WithDocumentID(strconv.FormatInt(doc.ID, 10)),
	)
	if err != nil {
		return fmt.Errorf("index document: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("index document: %s", res.String())
	}
	return nil
}

// BulkIndex upserts documents in one bulk request.
func (g *Gateway) BulkIndex(ctx context.Context, docs []Document) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, doc := range docs {
		action := map[string]any{
			"index": map[string]any{"_index": productIndex, "_id": strconv.FormatInt(doc.ID, 10)},
		}
		if err := enc.Encode(action); err != nil {
			return fmt.Errorf("encode bulk action: %w", err)
		}
		if err := enc.Encode(indexable(doc)); err != nil {
			return fmt.Errorf("encode bulk document: %w", err)
		}
	}

	res, err := g.es.Bulk(&buf, g.es.Bulk.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("bulk index: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("bulk index: %s", res.String())
	}

	var parsed struct {
		Errors bool `json:"errors"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return fmt.Errorf("decode bulk response: %w", err)
	}
	if parsed.Errors {
		return fmt.Errorf("bulk index: some documents failed")
	}
	return nil
}

func (g *Gateway) Delete(ctx context.Context, id int64) error {
	res, err := g.es.Delete(
		productIndex,
		strconv.FormatInt(id, 10),
		g.es.Delete.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("delete document: %s", res.String())
	}
	return nil
}

func (g *Gateway) search(ctx context.Context, body map[string]any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal query: %w", err)
	}

	res, err := g.es.Search(
		g.es.Search.WithContext(ctx),
		g.es.Search.WithIndex(productIndex),
		g.es.Search.WithBody(bytes.NewReader(payload)),
	)
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("search: %s", res.String())
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode search response: %w", err)
	}
	return nil
}

func indexable(doc Document) map[string]any {
	return map[string]any{
		"id":          doc.ID,
		"name":        doc.Name,
		"description": doc.Description,
		"price":       doc.Price,
		"category":    doc.Category,
		"brand":       doc.Brand,
		"image_url":   doc.ImageURL,
		"suggest":     map[string]any{"input": []string{doc.Name}},
	}
}
