// Command loadgen drives concurrent reservations against a running
// stocktrack instance and checks the no-oversell invariant from the
// outside: exactly initialStock requests may succeed and the remaining
// quantity must come back as zero.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"stocktrack/internal/config"
)

func main() {
	config.Load()
	var (
		baseURL       = config.GetEnv("TARGET_URL", "http://localhost:8080")
		storeID       = config.GetEnv("LOADGEN_STORE", "LOADGEN")
		initialStock  = config.GetEnvInt("LOADGEN_STOCK", 20)
		totalRequests = config.GetEnvInt("LOADGEN_REQUESTS", 50)
	)

	// a fresh SKU per run so reruns never collide with leftover rows
	sku := "loadgen-" + uuid.NewString()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	client := &http.Client{Timeout: 10 * time.Second}

	if err := createItem(ctx, client, baseURL, storeID, sku, initialStock); err != nil {
		log.Fatalf("failed to create item: %v", err)
	}

	var reserved, soldOut, conflict, other atomic.Int32

	start := time.Now()
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < totalRequests; i++ {
		g.Go(func() error {
			status, err := reserve(ctx, client, baseURL, storeID, sku)
			if err != nil {
				return err
			}
			switch status {
			case http.StatusOK:
				reserved.Add(1)
			case http.StatusGone:
				soldOut.Add(1)
			case http.StatusConflict:
				conflict.Add(1)
			default:
				other.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Fatalf("load run failed: %v", err)
	}
	elapsed := time.Since(start)

	final, err := remainingQuantity(ctx, client, baseURL, storeID, sku)
	if err != nil {
		log.Fatalf("failed to read final quantity: %v", err)
	}

	fmt.Println("========== LOAD RESULTS ==========")
	fmt.Printf("Initial Stock:  %d\n", initialStock)
	fmt.Printf("Total Requests: %d\n", totalRequests)
	fmt.Printf("Reserved:       %d\n", reserved.Load())
	fmt.Printf("Sold Out:       %d\n", soldOut.Load())
	fmt.Printf("Conflict:       %d\n", conflict.Load())
	fmt.Printf("Other:          %d\n", other.Load())
	fmt.Printf("Final Quantity: %d\n", final)
	fmt.Printf("Duration:       %v\n", elapsed)
	fmt.Println("==================================")

	if int(reserved.Load())+final != initialStock {
		log.Fatalf("FAIL: conservation violated: %d reserved + %d remaining != %d initial",
			reserved.Load(), final, initialStock)
	}
	if final < 0 {
		log.Fatalf("FAIL: oversell: final quantity %d", final)
	}
	fmt.Println("PASS: no oversell, stock conserved")
}

func createItem(ctx context.Context, client *http.Client, baseURL, storeID, sku string, quantity int) error {
	payload, _ := json.Marshal(map[string]any{
		"store_id": storeID,
		"sku":      sku,
		"quantity": quantity,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		baseURL+"/api/inventory/items", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

func reserve(ctx context.Context, client *http.Client, baseURL, storeID, sku string) (int, error) {
	payload, _ := json.Marshal(map[string]any{
		"store_id": storeID,
		"sku":      sku,
		"quantity": 1,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		baseURL+"/api/inventory/reserve", bytes.NewReader(payload))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}

func remainingQuantity(ctx context.Context, client *http.Client, baseURL, storeID, sku string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/api/inventory/stores/%s/items/%s", baseURL, storeID, sku), nil)
	if err != nil {
		return 0, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var body struct {
		Quantity int `json:"quantity"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, err
	}
	return body.Quantity, nil
}
