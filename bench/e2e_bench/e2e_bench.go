package main

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"sync"
	"time"
)

// Session represents the server's response when an account is registered.
type Session struct {
	Account struct {
		ID string `json:"id"`
	} `json:"account"`
	Token string `json:"token"`
}

// PostReq defines the request payload for creating a new post.
type PostReq struct {
	Body string `json:"body"`
}

// Post represents a post entity returned by the API.
type Post struct {
	ID       string `json:"id"`
	AuthorID string `json:"author_id"`
}

// Notification is one entry of GET /notifications.
type Notification struct {
	ActorID  string `json:"actor_id"`
	TargetID string `json:"target_id"`
}

// Measures how long a like takes to show up in the post author's
// notifications, i.e. the Kafka hop through the worker.
func main() {
	// CLI flags
	var serverAddr string
	var U, L, concurrency int
	var pollTimeout int
	var certFile, keyFile string

	flag.StringVar(&serverAddr, "server", "http://localhost:8080", "server base URL")
	flag.IntVar(&U, "users", 50, "number of accounts to register")
	flag.IntVar(&L, "likes", 200, "number of likes to send")
	flag.IntVar(&concurrency, "c", 20, "concurrency for liking")
	flag.IntVar(&pollTimeout, "timeout", 10, "seconds to wait for notification delivery")
	flag.StringVar(&certFile, "cert", "", "client certificate for mTLS")
	flag.StringVar(&keyFile, "key", "", "client key for mTLS")
	flag.Parse()

	ctx := context.Background()

	transport := &http.Transport{}
	if certFile != "" && keyFile != "" {
		// --- TLS setup for secure communication ---
		cert, err := tls.LoadX509KeyPair(certFile, keyFile)
		if err != nil {
			panic(fmt.Sprintf("failed to load cert/key: %v", err))
		}
		transport.TLSClientConfig = &tls.Config{Certificates: []tls.Certificate{cert}}
	}
	client := &http.Client{Transport: transport, Timeout: 10 * time.Second}

	send := func(method, url, token string, body any, out any) (int, error) {
		var buf bytes.Buffer
		if body != nil {
			if err := json.NewEncoder(&buf).Encode(body); err != nil {
				return 0, err
			}
		}
		req, err := http.NewRequestWithContext(ctx, method, url, &buf)
		if err != nil {
			return 0, err
		}
		req.Header.Set("Content-Type", "application/json")
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		resp, err := client.Do(req)
		if err != nil {
			return 0, err
		}
		defer resp.Body.Close()
		if out != nil && resp.StatusCode < 300 {
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return resp.StatusCode, err
			}
		}
		return resp.StatusCode, nil
	}

	// --- 1) Register accounts, each with one post ---
	fmt.Printf("Registering %d accounts...\n", U)
	sessions := make([]Session, U)
	posts := make([]Post, U)
	for i := range U {
		payload := map[string]string{
			"username": fmt.Sprintf("e2e-%d-%d", i, time.Now().UnixNano()),
			"password": "e2e-bench-password",
		}
		if _, err := send(http.MethodPost, serverAddr+"/accounts/register", "", payload, &sessions[i]); err != nil {
			fmt.Printf("register error: %v\n", err)
			os.Exit(1)
		}
		if _, err := send(http.MethodPost, serverAddr+"/posts", sessions[i].Token, PostReq{Body: fmt.Sprintf("post %d", i)}, &posts[i]); err != nil {
			fmt.Printf("post error: %v\n", err)
			os.Exit(1)
		}
	}
	fmt.Println("Accounts registered.")

	// --- 2) Pick distinct (liker, post) pairs ---
	type likeJob struct {
		liker int
		post  int
	}
	seen := make(map[likeJob]bool)
	var jobs []likeJob
	for attempts := 0; len(jobs) < L && attempts < L*10; attempts++ {
		j := likeJob{liker: rand.Intn(U), post: rand.Intn(U)}
		if j.liker == j.post || seen[j] {
			continue
		}
		seen[j] = true
		jobs = append(jobs, j)
	}

	// --- 3) Like concurrently and poll the author's notifications ---
	fmt.Printf("Sending %d likes with concurrency %d...\n", len(jobs), concurrency)
	var latencies []float64
	var latMu sync.Mutex
	var failCount int64
	var wg sync.WaitGroup
	sem := make(chan struct{}, concurrency) // concurrency limiter

	for _, j := range jobs {
		wg.Add(1)
		sem <- struct{}{}
		go func(j likeJob) {
			defer wg.Done()
			defer func() { <-sem }()

			liker := sessions[j.liker]
			post := posts[j.post]
			author := sessions[j.post]

			start := time.Now()
			status, err := send(http.MethodPost, serverAddr+"/posts/"+post.ID+"/like", liker.Token, nil, nil)
			if err != nil || status != http.StatusCreated {
				latMu.Lock()
				failCount++
				latMu.Unlock()
				return
			}

			// Poll notifications until the like appears or timeout
			deadline := time.Now().Add(time.Duration(pollTimeout) * time.Second)
			for time.Now().Before(deadline) {
				var list []Notification
				if _, err := send(http.MethodGet, serverAddr+"/notifications?limit=100", author.Token, nil, &list); err == nil {
					for _, n := range list {
						if n.ActorID == liker.Account.ID && n.TargetID == post.ID {
							lat := time.Since(start).Seconds() * 1000
							latMu.Lock()
							latencies = append(latencies, lat)
							latMu.Unlock()
							return
						}
					}
				}
				time.Sleep(100 * time.Millisecond)
			}

			latMu.Lock()
			failCount++
			latMu.Unlock()
		}(j)
	}

	wg.Wait()

	// --- 4) Compute latency statistics and export to CSV ---
	if len(latencies) == 0 {
		fmt.Println("No successful deliveries recorded.")
	} else {
		trimPercent := 1.0
		meanVal := trimmedMean(latencies, trimPercent)
		p50 := trimmedPercentile(latencies, 50, trimPercent)
		p90 := trimmedPercentile(latencies, 90, trimPercent)
		p99 := trimmedPercentile(latencies, 99, trimPercent)
		fmt.Printf("Delivery stats (ms): count=%d mean=%.2f p50=%.2f p90=%.2f p99=%.2f fails=%d\n",
			len(latencies), meanVal, p50, p90, p99, failCount)

		// Export latencies to CSV
		f, _ := os.Create("e2e_latencies.csv")
		w := csv.NewWriter(f)
		w.Write([]string{"latency_ms"})
		for _, v := range latencies {
			w.Write([]string{fmt.Sprintf("%.3f", v)})
		}
		w.Flush()
		f.Close()
		fmt.Println("Saved e2e_latencies.csv")
	}
}

// trimmedMean calculates the mean of a dataset excluding extreme values.
func trimmedMean(data []float64, trimPercent float64) float64 {
	if len(data) == 0 {
		return 0
	}
	sort.Float64s(data)
	trim := int(float64(len(data)) * trimPercent / 100.0)
	if trim*2 >= len(data) {
		trim = len(data) / 2
	}
	data = data[trim : len(data)-trim]
	var sum float64
	for _, v := range data {
		sum += v
	}
	return sum / float64(len(data))
}

// trimmedPercentile returns a percentile value after trimming extremes.
func trimmedPercentile(data []float64, p float64, trimPercent float64) float64 {
	if len(data) == 0 {
		return 0
	}
	sort.Float64s(data)
	trim := int(float64(len(data)) * trimPercent / 100.0)
	if trim*2 >= len(data) {
		trim = len(data) / 2
	}
	data = data[trim : len(data)-trim]
	return percentile(data, p)
}

// percentile calculates the requested percentile using linear interpolation.
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
	d0 := data[f] * (float64(c) - k)
	d1 := data[c] * (k - float64(f))
	return d0 + d1
}
