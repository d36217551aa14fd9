package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// Concurrent purchase burst against a running server. Verifies that
// successes never exceed the starting quantity, i.e. no oversell.
func main() {
	var (
		baseURL  = flag.String("url", "http://localhost:8080", "server base URL")
		itemID   = flag.String("item", "", "item id to hammer")
		requests = flag.Int("n", 50, "number of concurrent purchase requests")
		quantity = flag.Int("qty", 1, "quantity per request")
	)
	flag.Parse()

	if *itemID == "" {
		log.Fatal("missing -item")
	}

	client := &http.Client{Timeout: 10 * time.Second}

	before, err := itemQuantity(client, *baseURL, *itemID)
	if err != nil {
		log.Fatalf("failed to read item: %v", err)
	}
	fmt.Printf("item %s starting quantity: %d\n", *itemID, before)

	var (
		success atomic.Int32
		soldOut atomic.Int32
		failed  atomic.Int32
		wg      sync.WaitGroup
	)

	start := time.Now()
	for i := 0; i < *requests; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()

			body, _ := json.Marshal(map[string]int{"quantity": *quantity})
			req, err := http.NewRequest(http.MethodPost,
				fmt.Sprintf("%s/api/items/%s/purchase", *baseURL, *itemID), bytes.NewReader(body))
			if err != nil {
				failed.Add(1)
				return
			}
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("X-Actor-ID", fmt.Sprintf("stress-buyer-%d", n))

			resp, err := client.Do(req)
			if err != nil {
				failed.Add(1)
				return
			}
			defer resp.Body.Close()

			switch resp.StatusCode {
			case http.StatusOK:
				success.Add(1)
			case http.StatusBadRequest:
				soldOut.Add(1)
			default:
				failed.Add(1)
			}
		}(i)
	}
	wg.Wait()
	elapsed := time.Since(start)

	after, err := itemQuantity(client, *baseURL, *itemID)
	if err != nil {
		log.Fatalf("failed to re-read item: %v", err)
	}

	fmt.Printf("\n=== results ===\n")
	fmt.Printf("requests:   %d in %v\n", *requests, elapsed)
	fmt.Printf("success:    %d\n", success.Load())
	fmt.Printf("sold out:   %d\n", soldOut.Load())
	fmt.Printf("failed:     %d\n", failed.Load())
	fmt.Printf("quantity:   %d -> %d\n", before, after)

	sold := int(success.Load()) * *quantity
	if after != before-sold {
		fmt.Printf("MISMATCH: expected final quantity %d\n", before-sold)
		return
	}
	if after < 0 {
		fmt.Println("OVERSELL DETECTED")
		return
	}
	fmt.Println("OK: no oversell")
}

func itemQuantity(client *http.Client, baseURL, itemID string) (int, error) {
	req, err := http.NewRequest(http.MethodGet, fmt.Sprintf("%s/api/items/%s", baseURL, itemID), nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("X-Actor-ID", "stress")

	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var out struct {
		Data struct {
			Quantity int `json:"quantity"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, err
	}
	return out.Data.Quantity, nil
}
