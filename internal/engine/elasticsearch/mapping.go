package elasticsearch

// DefaultIndexName is the index used when none is configured.
const DefaultIndexName = "market_listings"

// indexMapping keeps title and brand as keywords so substring search can run
// as case-insensitive wildcard queries, matching the store's semantics.
// Prices are scaled floats with two fraction digits.
const indexMapping = `{
  "settings": {
    "number_of_shards": 1,
    "number_of_replicas": 0
  },
  "mappings": {
    "properties": {
      "id":              { "type": "keyword" },
      "title":           { "type": "keyword", "ignore_above": 512 },
      "brand":           { "type": "keyword" },
      "size":            { "type": "float" },
      "price":           { "type": "scaled_float", "scaling_factor": 100 },
      "currency":        { "type": "keyword" },
      "condition":       { "type": "keyword" },
      "description":     { "type": "text" },
      "contact_info":    { "type": "keyword", "index": false },
      "is_sold":         { "type": "boolean" },
      "seller_id":       { "type": "keyword" },
      "seller_username": { "type": "keyword" },
      "view_count":      { "type": "long" },
      "images":          { "type": "keyword", "index": false },
      "created_at":      { "type": "date" },
      "updated_at":      { "type": "date" }
    }
  }
}`
