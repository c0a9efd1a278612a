// Package main seeds a running market service with sellers, listings,
// reviews and wishlist likes through its public HTTP API.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/GabrijelGordic/Suzeraj/pkg/httpclient"
	"github.com/GabrijelGordic/Suzeraj/pkg/middleware"
)

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// user is a seeded identity, sent to the service as identity headers.
type user struct {
	id       string
	username string
}

type seeder struct {
	client  *httpclient.Client
	baseURL string
}

// send issues an authenticated JSON request and decodes the response into out
// when out is non-nil.
func (s *seeder) send(ctx context.Context, method, path string, as user, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.HeaderUserID, as.id)
	req.Header.Set(middleware.HeaderUsername, as.username)

	resp, err := s.client.Do(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(data))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

type listingDef struct {
	title     string
	brand     string
	basePrice int64
}

var catalog = []listingDef{
	{title: "Air Max 90", brand: "Nike", basePrice: 140},
	{title: "Air Force 1 Low", brand: "Nike", basePrice: 110},
	{title: "Dunk Low Panda", brand: "Nike", basePrice: 160},
	{title: "Samba OG", brand: "Adidas", basePrice: 100},
	{title: "Gazelle Indoor", brand: "Adidas", basePrice: 120},
	{title: "Air Jordan 1 Retro High", brand: "Jordan", basePrice: 230},
	{title: "Air Jordan 4 Military Black", brand: "Jordan", basePrice: 260},
	{title: "990v6", brand: "New Balance", basePrice: 200},
	{title: "550 White Green", brand: "New Balance", basePrice: 130},
	{title: "Boost 350 V2", brand: "Yeezy", basePrice: 280},
	{title: "Foam Runner", brand: "Yeezy", basePrice: 90},
}

var (
	currencies = []string{"EUR", "USD", "GBP"}
	conditions = []string{"New", "Used"}
	comments   = []string{
		"Fast shipping, exactly as described.",
		"Great seller, would buy again.",
		"Box was damaged but the pair is fine.",
		"Took a while to answer messages.",
		"",
	}
)

func main() {
	log.SetFlags(log.Ltime | log.Lmsgprefix)
	log.SetPrefix("[seed] ")

	baseURL := getEnv("MARKET_URL", "http://localhost:8000")
	numUsers, _ := strconv.Atoi(getEnv("SEED_USERS", "8"))
	numListings, _ := strconv.Atoi(getEnv("SEED_LISTINGS", "60"))
	if numUsers < 2 {
		numUsers = 2
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	cfg := httpclient.DefaultConfig()
	cfg.Timeout = 10 * time.Second
	s := &seeder{client: httpclient.New(cfg), baseURL: baseURL}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	users := make([]user, numUsers)
	for i := range users {
		users[i] = user{id: uuid.NewString(), username: fmt.Sprintf("sneakerhead%02d", i+1)}
		profile := map[string]any{
			"bio":      "Collector since " + strconv.Itoa(2005+rng.Intn(18)),
			"location": []string{"Zagreb", "Split", "Berlin", "London", "Vienna"}[rng.Intn(5)],
		}
		if err := s.send(ctx, http.MethodPatch, "/api/v1/profile", users[i], profile, nil); err != nil {
			log.Fatalf("create profile %s: %v", users[i].username, err)
		}
	}
	log.Printf("Seeded %d profiles.", len(users))

	type created struct {
		ID string `json:"id"`
	}
	listingSellers := make(map[string]user, numListings)
	listingIDs := make([]string, 0, numListings)
	for i := 0; i < numListings; i++ {
		def := catalog[rng.Intn(len(catalog))]
		seller := users[rng.Intn(len(users))]
		// Sizes run 36 to 47.5 in half steps.
		size := float64(72+rng.Intn(24)) / 2
		price := decimal.NewFromInt(def.basePrice + int64(rng.Intn(80)) - 40).
			Add(decimal.NewFromInt(int64(rng.Intn(100))).Div(decimal.NewFromInt(100)))

		body := map[string]any{
			"title":        def.title,
			"brand":        def.brand,
			"size":         size,
			"price":        price,
			"currency":     currencies[rng.Intn(len(currencies))],
			"condition":    conditions[rng.Intn(len(conditions))],
			"description":  fmt.Sprintf("%s %s, size %.1f.", def.brand, def.title, size),
			"contact_info": seller.username + "@example.com",
			"images":       []string{fmt.Sprintf("https://img.example.com/%s/%d.jpg", seller.username, i)},
		}
		var out created
		if err := s.send(ctx, http.MethodPost, "/api/v1/listings", seller, body, &out); err != nil {
			log.Printf("  WARNING: listing %q: %v", def.title, err)
			continue
		}
		listingIDs = append(listingIDs, out.ID)
		listingSellers[out.ID] = seller
	}
	log.Printf("Seeded %d listings.", len(listingIDs))

	reviews := 0
	for _, reviewer := range users {
		for _, seller := range users {
			if seller.id == reviewer.id || rng.Intn(2) == 0 {
				continue
			}
			body := map[string]any{
				"seller":  seller.id,
				"rating":  1 + rng.Intn(5),
				"comment": comments[rng.Intn(len(comments))],
			}
			if err := s.send(ctx, http.MethodPost, "/api/v1/reviews", reviewer, body, nil); err != nil {
				log.Printf("  WARNING: review %s -> %s: %v", reviewer.username, seller.username, err)
				continue
			}
			reviews++
		}
	}
	log.Printf("Seeded %d reviews.", reviews)

	likes := 0
	for _, id := range listingIDs {
		liker := users[rng.Intn(len(users))]
		if liker.id == listingSellers[id].id {
			continue
		}
		if err := s.send(ctx, http.MethodPost, "/api/v1/listings/"+id+"/wishlist", liker, nil, nil); err != nil {
			log.Printf("  WARNING: like %s: %v", id, err)
			continue
		}
		likes++
	}
	log.Printf("Seeded %d wishlist likes.", likes)
	log.Println("Done.")
}
