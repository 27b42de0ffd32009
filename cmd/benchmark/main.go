package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Config holds the benchmark settings
var (
	targetURL   string
	concurrency int
	duration    time.Duration
	workload    string
)

// Metrics
var (
	totalRequests uint64
	transferOK    uint64 // redirected with success=1
	rejectedCSRF  uint64 // 403 from the guard
	rejectedRule  uint64 // redirected with a business error reason
	failOther     uint64
)

func init() {
	flag.StringVar(&targetURL, "url", "http://localhost:8080", "Bank base URL")
	flag.IntVar(&concurrency, "workers", 10, "Number of concurrent workers")
	flag.DurationVar(&duration, "duration", 30*time.Second, "Test duration")
	flag.StringVar(&workload, "workload", "legit", "Workload type: legit | forged")
}

func main() {
	flag.Parse()
	log.Printf("Starting Benchmark: %s | Workers: %d | Duration: %s", workload, concurrency, duration)

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(concurrency)

	for i := 0; i < concurrency; i++ {
		go worker(&wg, start)
	}

	wg.Wait()
	printResults(time.Since(start))
}

func worker(wg *sync.WaitGroup, start time.Time) {
	defer wg.Done()

	jar, _ := cookiejar.New(nil)
	client := &http.Client{
		Timeout: 5 * time.Second,
		Jar:     jar,
		// Classify by redirect target instead of following it.
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	if err := login(client, "alice", "alice"); err != nil {
		log.Printf("worker login failed: %v", err)
		return
	}

	for time.Since(start) < duration {
		form := url.Values{
			"to":     {recipient()},
			"amount": {"1"},
		}
		if workload == "forged" {
			// A cross-origin attacker cannot read the token cookie;
			// the best it can do is guess.
			form.Set("csrfToken", "forged-token-guess")
		} else {
			form.Set("csrfToken", tokenFromJar(jar))
		}

		resp, err := client.PostForm(targetURL+"/transfer", form)
		if err != nil {
			atomic.AddUint64(&failOther, 1)
			continue
		}

		atomic.AddUint64(&totalRequests, 1)
		switch {
		case resp.StatusCode == http.StatusForbidden:
			atomic.AddUint64(&rejectedCSRF, 1)
		case resp.StatusCode == http.StatusFound && strings.Contains(resp.Header.Get("Location"), "success=1"):
			atomic.AddUint64(&transferOK, 1)
		case resp.StatusCode == http.StatusFound && strings.Contains(resp.Header.Get("Location"), "error="):
			atomic.AddUint64(&rejectedRule, 1)
		default:
			atomic.AddUint64(&failOther, 1)
		}
		resp.Body.Close()
	}
}

func login(client *http.Client, username, password string) error {
	resp, err := client.PostForm(targetURL+"/login", url.Values{
		"username": {username},
		"password": {password},
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusFound || strings.Contains(resp.Header.Get("Location"), "error") {
		return fmt.Errorf("login rejected (status %d)", resp.StatusCode)
	}
	return nil
}

func tokenFromJar(jar *cookiejar.Jar) string {
	u, err := url.Parse(targetURL)
	if err != nil {
		return ""
	}
	for _, c := range jar.Cookies(u) {
		if c.Name == "csrfToken" {
			return c.Value
		}
	}
	return ""
}

func recipient() string {
	if rand.Float32() < 0.5 {
		return "bob"
	}
	return "attacker"
}

func printResults(d time.Duration) {
	total := atomic.LoadUint64(&totalRequests)
	ok := atomic.LoadUint64(&transferOK)
	csrfRej := atomic.LoadUint64(&rejectedCSRF)
	ruleRej := atomic.LoadUint64(&rejectedRule)
	fErr := atomic.LoadUint64(&failOther)

	tps := float64(total) / d.Seconds()
	rejectRate := 0.0
	if total > 0 {
		rejectRate = float64(csrfRej) / float64(total) * 100
	}

	results := map[string]interface{}{
		"workload":        workload,
		"duration_sec":    d.Seconds(),
		"total_requests":  total,
		"throughput_tps":  tps,
		"transfers_ok":    ok,
		"csrf_rejected":   csrfRej,
		"rule_rejected":   ruleRej,
		"csrf_reject_pct": rejectRate,
		"errors":          fErr,
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(results)

	filename := fmt.Sprintf("results_%s.json", workload)
	file, _ := os.Create(filename)
	defer file.Close()
	json.NewEncoder(file).Encode(results)
}
