package elasticsearch

// DefaultIndexName is the default Elasticsearch index used for product documents.
const DefaultIndexName = "finsearch_products"

// buildIndexMapping returns the JSON mapping for the products index, with a
// German analyzer for full text and an edge n-gram analyzer for suggestions.
// Properties are nested so a name and its value match on the same entry.
func buildIndexMapping() string {
	return `{
  "settings": {
    "number_of_shards": 1,
    "number_of_replicas": 0,
    "analysis": {
      "analyzer": {
        "german_analyzer": {
          "type": "custom",
          "tokenizer": "standard",
          "filter": ["lowercase", "german_stop", "german_normalization", "german_stemmer"]
        },
        "autocomplete_analyzer": {
          "type": "custom",
          "tokenizer": "autocomplete_tokenizer",
          "filter": ["lowercase"]
        },
        "autocomplete_search": {
          "type": "custom",
          "tokenizer": "standard",
          "filter": ["lowercase"]
        }
      },
      "tokenizer": {
        "autocomplete_tokenizer": {
          "type": "edge_ngram",
          "min_gram": 2,
          "max_gram": 20,
          "token_chars": ["letter", "digit"]
        }
      },
      "filter": {
        "german_stop": {
          "type": "stop",
          "stopwords": "_german_"
        },
        "german_stemmer": {
          "type": "stemmer",
          "language": "light_german"
        }
      }
    }
  },
  "mappings": {
    "properties": {
      "id":              { "type": "long" },
      "variant_id":      { "type": "long" },
      "number":          { "type": "keyword" },
      "name":            { "type": "text", "analyzer": "german_analyzer", "fields": { "keyword": { "type": "keyword", "ignore_above": 256 }, "autocomplete": { "type": "text", "analyzer": "autocomplete_analyzer", "search_analyzer": "autocomplete_search" } } },
      "description":     { "type": "text", "analyzer": "german_analyzer" },
      "keywords":        { "type": "text", "analyzer": "german_analyzer" },
      "category_ids":    { "type": "long" },
      "category_tokens": { "type": "keyword" },
      "properties": {
        "type": "nested",
        "properties": {
          "name":   { "type": "keyword" },
          "value":  { "type": "keyword" },
          "number": { "type": "double" }
        }
      },
      "price":           { "type": "double" },
      "added":           { "type": "date" },
      "sales_frequency": { "type": "integer" }
    }
  }
}`
}
