package main

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Session is the server's response to register.
type Session struct {
	Account struct {
		ID string `json:"id"`
	} `json:"account"`
	Token string `json:"token"`
}

// PostReq represents the JSON payload for creating a post
type PostReq struct {
	Body string `json:"body"`
}

func main() {
	// --- Command-line flags ---
	var server string
	var duration int
	var concurrency int
	var follows int
	var feedRatio float64
	var csvFile string
	var trimPercent float64
	var certFile, keyFile string

	flag.StringVar(&server, "server", "http://localhost:8080", "server base URL")
	flag.IntVar(&duration, "duration", 30, "duration in seconds")
	flag.IntVar(&concurrency, "c", 50, "number of concurrent goroutines / accounts")
	flag.IntVar(&follows, "follows", 10, "accounts each load account follows")
	flag.Float64Var(&feedRatio, "feed", 0.8, "share of requests that read the feed instead of posting")
	flag.StringVar(&csvFile, "csv", "latencies.csv", "CSV file to save latencies")
	flag.Float64Var(&trimPercent, "trim", 1.0, "percent of latency to trim from top and bottom for trimmed mean")
	flag.StringVar(&certFile, "cert", "", "client certificate for mTLS")
	flag.StringVar(&keyFile, "key", "", "client key for mTLS")
	flag.Parse()

	transport := &http.Transport{}
	if certFile != "" && keyFile != "" {
		// --- Load client certificate for mTLS ---
		cert, err := tls.LoadX509KeyPair(certFile, keyFile)
		if err != nil {
			panic(fmt.Sprintf("failed to load cert/key: %v", err))
		}
		transport.TLSClientConfig = &tls.Config{Certificates: []tls.Certificate{cert}}
	}
	client := &http.Client{Transport: transport, Timeout: 10 * time.Second}

	// --- Register an account for each goroutine ---
	fmt.Printf("Registering %d accounts...\n", concurrency)
	sessions := make([]Session, concurrency)
	for i := range sessions {
		payload := map[string]string{
			"username": fmt.Sprintf("load-%d-%d", i, time.Now().UnixNano()),
			"password": "load-test-password",
		}
		b, _ := json.Marshal(payload)

		resp, err := client.Post(server+"/accounts/register", "application/json", bytes.NewReader(b))
		if err != nil {
			panic(fmt.Sprintf("failed to register account: %v", err))
		}
		if err := json.NewDecoder(resp.Body).Decode(&sessions[i]); err != nil {
			resp.Body.Close()
			panic(fmt.Sprintf("failed to decode register response: %v", err))
		}
		resp.Body.Close()
	}

	// --- Follow a random subset so feeds have content to merge ---
	for _, s := range sessions {
		for range follows {
			target := sessions[rand.Intn(len(sessions))]
			if target.Account.ID == s.Account.ID {
				continue
			}
			resp, err := do(client, http.MethodPost, server+"/accounts/follow/"+target.Account.ID, s.Token, nil)
			if err != nil {
				panic(fmt.Sprintf("failed to follow: %v", err))
			}
			resp.Body.Close()
		}
	}
	fmt.Println("Accounts ready.")

	// --- Prepare concurrency test ---
	stopTime := time.Now().Add(time.Duration(duration) * time.Second)
	var wg sync.WaitGroup

	// Atomic counters for thread-safe tracking
	var requests int64
	var successes int64
	var errors4xx int64
	var errors5xx int64

	latencySlices := make([][]float64, concurrency) // each goroutine records latencies

	// --- Start concurrent goroutines for load test ---
	for i := range concurrency {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			token := sessions[idx].Token
			var localLatencies []float64

			// Mix feed reads and new posts until the test duration ends
			for time.Now().Before(stopTime) {
				start := time.Now()
				var resp *http.Response
				var err error
				if rand.Float64() < feedRatio {
					resp, err = do(client, http.MethodGet, server+"/feed?limit=50", token, nil)
				} else {
					b, _ := json.Marshal(PostReq{Body: fmt.Sprintf("load test post %d", time.Now().UnixNano())})
					resp, err = do(client, http.MethodPost, server+"/posts", token, b)
				}
				lat := time.Since(start).Seconds() * 1000 // latency in ms
				localLatencies = append(localLatencies, lat)
				atomic.AddInt64(&requests, 1)

				if err != nil {
					fmt.Printf("Request error: %v\n", err)
					continue
				}

				// Count success/failure by status code
				switch {
				case resp.StatusCode >= 200 && resp.StatusCode < 300:
					atomic.AddInt64(&successes, 1)
				case resp.StatusCode >= 400 && resp.StatusCode < 500:
					atomic.AddInt64(&errors4xx, 1)
				case resp.StatusCode >= 500:
					atomic.AddInt64(&errors5xx, 1)
				}
				if resp.StatusCode >= 400 {
					bodyBytes, _ := io.ReadAll(resp.Body)
					fmt.Printf("Status %d: %s\n", resp.StatusCode, string(bodyBytes))
				} else {
					io.Copy(io.Discard, resp.Body)
				}
				resp.Body.Close()
			}

			latencySlices[idx] = localLatencies
		}(i)
	}

	wg.Wait()

	// --- Merge all latencies ---
	var allLatencies []float64
	for _, slice := range latencySlices {
		allLatencies = append(allLatencies, slice...)
	}
	sort.Float64s(allLatencies)

	// --- Compute statistics ---
	trimmedMeanVal := trimmedMean(allLatencies, trimPercent)
	p50 := percentile(allLatencies, 50)
	p90 := percentile(allLatencies, 90)
	p99 := percentile(allLatencies, 99)

	fmt.Printf("Requests: %d  Successes: %d  4xx: %d  5xx: %d\n", requests, successes, errors4xx, errors5xx)
	fmt.Printf("Latency (ms): trimmed_mean=%.2f p50=%.2f p90=%.2f p99=%.2f\n", trimmedMeanVal, p50, p90, p99)

	// --- Save latencies to CSV ---
	f, err := os.Create(csvFile)
	if err != nil {
		fmt.Printf("Failed to create CSV file: %v\n", err)
		return
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()
	w.Write([]string{"latency_ms"})
	for _, d := range allLatencies {
		w.Write([]string{fmt.Sprintf("%.3f", d)})
	}
	fmt.Printf("Saved latencies to %s\n", csvFile)
}

// trimmedMean calculates mean latency after trimming top/bottom trimPercent values
func trimmedMean(data []float64, trimPercent float64) float64 {
	if len(data) == 0 {
		return 0
	}
	trim := int(float64(len(data)) * trimPercent / 100.0)
	if trim*2 >= len(data) {
		trim = len(data) / 2
	}
	trimmed := data[trim : len(data)-trim]
	var sum float64
	for _, v := range trimmed {
		sum += v
	}
	return sum / float64(len(trimmed))
}

// percentile calculates the p-th percentile from sorted data
func percentile(data []float64, p float64) float64 {
	if len(data) == 0 {
		return 0
	}
	k := (p / 100.0) * float64(len(data)-1)
	f := int(k)
	c := f + 1
	if c >= len(data) {
		return data[len(data)-1]
	}
	d0 := data[f]*(float64(c)-k) + data[c]*(k-float64(f))
	return d0
}

// do sends an authenticated request with an optional JSON body.
func do(client *http.Client, method, url, token string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(context.Background(), method, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return client.Do(req)
}
